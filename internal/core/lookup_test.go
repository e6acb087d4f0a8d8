package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestPropertyLookupCascade(t *testing.T) {
	t.Parallel()

	scn := newTestScenario(t,
		map[string]string{"db.image": "from-scenario"},
		map[string]string{"db.image": "from-global"},
	)
	svc := newServiceContext("db", scn, ServiceDescriptor{
		Properties: map[string]string{"db.image": "from-declared"},
	}, true, 0)
	svc.Set("db.image", "from-store")

	lookup := NewPropertyLookup("db.image").WithDefault("from-default")

	// Peel the sources off one by one; each removal falls through to the next.
	if got := lookup.Get(svc); got != "from-store" {
		t.Fatalf("got %q, want the service store value", got)
	}

	svc.Set("db.image", "")
	if got := lookup.Get(svc); got != "from-scenario" {
		t.Fatalf("got %q, want the scenario value after blanking the store", got)
	}
}

func TestPropertyLookupFallthrough(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		scenario map[string]string
		declared map[string]string
		global   map[string]string
		want     string
	}{
		"scenario beats declared and global": {
			scenario: map[string]string{"k": "scenario"},
			declared: map[string]string{"k": "declared"},
			global:   map[string]string{"k": "global"},
			want:     "scenario",
		},
		"declared beats global": {
			declared: map[string]string{"k": "declared"},
			global:   map[string]string{"k": "global"},
			want:     "declared",
		},
		"global beats default": {
			global: map[string]string{"k": "global"},
			want:   "global",
		},
		"default when nothing matches": {
			want: "default",
		},
		"blank values are skipped": {
			scenario: map[string]string{"k": "   "},
			declared: map[string]string{"k": ""},
			global:   map[string]string{"k": "global"},
			want:     "global",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			scn := newTestScenario(t, tc.scenario, tc.global)
			svc := newServiceContext("svc", scn, ServiceDescriptor{Properties: tc.declared}, true, 0)

			got := NewPropertyLookup("k").WithDefault("default").Get(svc)
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPropertyLookupGetAsBool(t *testing.T) {
	t.Parallel()

	scn := newTestScenario(t, nil, nil)
	svc := newServiceContext("svc", scn, ServiceDescriptor{}, true, 0)

	tests := map[string]struct {
		value string
		want  bool
	}{
		"true":        {"true", true},
		"mixed case":  {"TrUe", true},
		"false":       {"false", false},
		"other value": {"yes", false},
		"absent":      {"", false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			lookup := NewPropertyLookup("flag")
			if tc.value != "" {
				lookup = lookup.WithDefault(tc.value)
			}
			if got := lookup.GetAsBool(svc); got != tc.want {
				t.Fatalf("GetAsBool(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestPropertyLookupGetAsInt(t *testing.T) {
	t.Parallel()

	scn := newTestScenario(t, map[string]string{
		"replicas": "3",
		"broken":   "not-a-number",
	}, nil)
	svc := newServiceContext("svc", scn, ServiceDescriptor{}, true, 0)

	got, err := NewPropertyLookup("replicas").GetAsInt(svc)
	if err != nil || got != 3 {
		t.Fatalf("GetAsInt = %d, %v; want 3", got, err)
	}

	if _, err := NewPropertyLookup("broken").GetAsInt(svc); !errors.Is(err, ErrInvalidConfigValue) {
		t.Fatalf("error = %v, want %v", err, ErrInvalidConfigValue)
	}
}

func TestPropertyLookupGetAsList(t *testing.T) {
	t.Parallel()

	scn := newTestScenario(t, map[string]string{"ports": "8080,9090,2379"}, nil)
	svc := newServiceContext("svc", scn, ServiceDescriptor{}, true, 0)

	got := NewPropertyLookup("ports").GetAsList(svc)
	want := []string{"8080", "9090", "2379"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GetAsList = %v, want %v", got, want)
	}

	// An unresolved key yields an empty slice, never []string{""}.
	empty := NewPropertyLookup("missing").GetAsList(svc)
	if len(empty) != 0 {
		t.Fatalf("GetAsList on missing key = %v, want empty", empty)
	}
}
