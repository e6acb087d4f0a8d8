package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sgitario/jester/internal/config"
)

func TestScenarioLogRetainedOnFailure(t *testing.T) {
	t.Parallel()

	scn := newTestScenario(t, nil, nil)
	scn.Logger().Info("something happened")
	scn.MarkFailed()

	if err := scn.FinalizeArtifacts(); err != nil {
		t.Fatalf("FinalizeArtifacts: %v", err)
	}

	data, err := os.ReadFile(scn.LogFile())
	if err != nil {
		t.Fatalf("log of a failed scenario not retained: %v", err)
	}
	if !strings.Contains(string(data), "something happened") {
		t.Fatalf("retained log misses the recorded line: %q", data)
	}
}

func TestScenarioLogDeletedOnSuccess(t *testing.T) {
	t.Parallel()

	scn := newTestScenario(t, nil, nil)
	scn.Logger().Info("something happened")

	if err := scn.FinalizeArtifacts(); err != nil {
		t.Fatalf("FinalizeArtifacts: %v", err)
	}

	if _, err := os.Stat(scn.LogFile()); !os.IsNotExist(err) {
		t.Fatalf("log of a passed scenario still present (stat err = %v)", err)
	}
}

func TestScenarioMarkFailedIsOneWay(t *testing.T) {
	t.Parallel()

	scn := newTestScenario(t, nil, nil)
	t.Cleanup(func() { _ = scn.FinalizeArtifacts() })

	if scn.Failed() {
		t.Fatal("fresh scenario reports failed")
	}
	scn.MarkFailed()
	scn.MarkFailed()
	if !scn.Failed() {
		t.Fatal("marked scenario does not report failed")
	}
}

func TestScenarioServiceFolder(t *testing.T) {
	t.Parallel()

	scn := newTestScenario(t, nil, nil)
	t.Cleanup(func() { _ = scn.FinalizeArtifacts() })

	dir, err := scn.ServiceFolder("db")
	if err != nil {
		t.Fatalf("ServiceFolder: %v", err)
	}
	if filepath.Dir(dir) != scn.Dir() {
		t.Fatalf("service folder %s not under scenario dir %s", dir, scn.Dir())
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("service folder not created: %v", err)
	}

	// Creating it again is fine.
	if _, err := scn.ServiceFolder("db"); err != nil {
		t.Fatalf("second ServiceFolder: %v", err)
	}
}

func TestScenarioArtifactLockExcludesSameName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	params := ScenarioContextParams{Name: "shared", LogDir: dir}

	first, err := NewScenarioContext(context.Background(), params)
	if err != nil {
		t.Fatalf("first NewScenarioContext: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*artifactLockRetryInterval)
	defer cancel()
	if _, err := NewScenarioContext(ctx, params); err == nil {
		t.Fatal("second scenario under the same name acquired the lock")
	}

	if err := first.FinalizeArtifacts(); err != nil {
		t.Fatalf("FinalizeArtifacts: %v", err)
	}

	// Released lock can be re-acquired.
	second, err := NewScenarioContext(context.Background(), params)
	if err != nil {
		t.Fatalf("NewScenarioContext after release: %v", err)
	}
	if err := second.FinalizeArtifacts(); err != nil {
		t.Fatalf("second FinalizeArtifacts: %v", err)
	}
}

func TestScenarioValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, err := NewScenarioContext(ctx, ScenarioContextParams{LogDir: t.TempDir()}); err == nil {
		t.Fatal("empty name accepted")
	}
	if _, err := NewScenarioContext(ctx, ScenarioContextParams{Name: "x"}); err == nil {
		t.Fatal("empty log dir accepted")
	}
}

func TestScenarioProperties(t *testing.T) {
	t.Parallel()

	scn, err := NewScenarioContext(context.Background(), ScenarioContextParams{
		Name:       "props",
		LogDir:     t.TempDir(),
		Properties: config.MapSource{"db.image": "postgres:16"},
		Global:     config.MapSource{"region": "eu-west-1"},
	})
	if err != nil {
		t.Fatalf("NewScenarioContext: %v", err)
	}
	t.Cleanup(func() { _ = scn.FinalizeArtifacts() })

	if v, ok := scn.Property("db.image"); !ok || v != "postgres:16" {
		t.Fatalf("Property = %q, %v", v, ok)
	}
	if v, ok := scn.GlobalProperty("region"); !ok || v != "eu-west-1" {
		t.Fatalf("GlobalProperty = %q, %v", v, ok)
	}
	if _, ok := scn.Property("missing"); ok {
		t.Fatal("missing property reported a hit")
	}
	if scn.ID() == "" {
		t.Fatal("scenario without an ID")
	}
}
