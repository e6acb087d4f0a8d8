package kubernetes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/yaml"

	"github.com/Sgitario/jester/internal/core"
)

// appLabel is the label key tying the Deployment, its pods, and the exposed
// Services to the declared service name.
const appLabel = "app"

// renderDeployment merges the service declaration over the configured
// manifest template (or an empty skeleton): name, namespace, labels,
// selector, image, command, and container ports always come from the
// declaration, everything else from the template.
func (r *Resource) renderDeployment() (*appsv1.Deployment, error) {
	name := r.svc.Name()
	desc := r.svc.Descriptor()

	deployment := &appsv1.Deployment{}
	if template := core.NewPropertyLookup(TemplateProperty).Get(r.svc); template != "" {
		if err := yaml.Unmarshal([]byte(template), deployment); err != nil {
			return nil, fmt.Errorf("service %s: parse deployment template: %w", name, err)
		}
	}

	labels := map[string]string{appLabel: name}
	deployment.ObjectMeta.Name = name
	deployment.ObjectMeta.Namespace = r.namespace
	if deployment.ObjectMeta.Labels == nil {
		deployment.ObjectMeta.Labels = map[string]string{}
	}
	deployment.ObjectMeta.Labels[appLabel] = name
	deployment.Spec.Selector = &metav1.LabelSelector{MatchLabels: labels}
	if deployment.Spec.Template.ObjectMeta.Labels == nil {
		deployment.Spec.Template.ObjectMeta.Labels = map[string]string{}
	}
	deployment.Spec.Template.ObjectMeta.Labels[appLabel] = name

	if len(deployment.Spec.Template.Spec.Containers) == 0 {
		deployment.Spec.Template.Spec.Containers = []corev1.Container{{}}
	}
	container := &deployment.Spec.Template.Spec.Containers[0]
	container.Name = name
	container.Image = desc.Image
	if len(desc.Command) > 0 {
		container.Command = desc.Command
	}
	container.Ports = container.Ports[:0]
	for _, port := range desc.Ports {
		container.Ports = append(container.Ports, corev1.ContainerPort{
			ContainerPort: int32(port),
		})
	}

	return deployment, nil
}

// applyDeployment renders the workload manifest, writes it into the service
// folder for inspection, and creates or updates the Deployment. An existing
// Deployment keeps its identity: restarts flow through the update path.
func (r *Resource) applyDeployment(ctx context.Context) error {
	desired, err := r.renderDeployment()
	if err != nil {
		return err
	}
	r.writeManifest(desired)

	deployments := r.client.AppsV1().Deployments(r.namespace)
	existing, err := deployments.Get(ctx, desired.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, createErr := deployments.Create(ctx, desired, metav1.CreateOptions{}); createErr != nil {
			return fmt.Errorf("service %s: create deployment: %w", r.svc.Name(), createErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("service %s: get deployment: %w", r.svc.Name(), err)
	}

	existing.Labels = desired.Labels
	existing.Spec = desired.Spec
	if _, err := deployments.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("service %s: update deployment: %w", r.svc.Name(), err)
	}
	return nil
}

// scaleTo sets the Deployment's replica count.
func (r *Resource) scaleTo(ctx context.Context, replicas int32) error {
	deployments := r.client.AppsV1().Deployments(r.namespace)
	deployment, err := deployments.Get(ctx, r.svc.Name(), metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("service %s: get deployment for scaling: %w", r.svc.Name(), err)
	}
	deployment.Spec.Replicas = &replicas
	if _, err := deployments.Update(ctx, deployment, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("service %s: scale deployment to %d: %w", r.svc.Name(), replicas, err)
	}
	return nil
}

// exposePort creates the NodePort Service for one declared port and returns
// the assigned node port. An already existing Service under the same name is
// adopted.
func (r *Resource) exposePort(ctx context.Context, port int) (int, error) {
	name := fmt.Sprintf("%s-%d", r.svc.Name(), port)
	services := r.client.CoreV1().Services(r.namespace)

	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: r.namespace,
			Labels:    map[string]string{appLabel: r.svc.Name()},
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeNodePort,
			Selector: map[string]string{appLabel: r.svc.Name()},
			Ports: []corev1.ServicePort{{
				Port:       int32(port),
				TargetPort: intstr.FromInt(port),
			}},
		},
	}

	created, err := services.Create(ctx, svc, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		created, err = services.Get(ctx, name, metav1.GetOptions{})
	}
	if err != nil {
		return 0, fmt.Errorf("service %s: expose port %d: %w", r.svc.Name(), port, err)
	}
	if len(created.Spec.Ports) == 0 {
		return 0, fmt.Errorf("service %s: exposed service %s has no ports: %w",
			r.svc.Name(), name, core.ErrUnsupportedEnvironment)
	}
	return int(created.Spec.Ports[0].NodePort), nil
}

// writeManifest drops the rendered manifest into the service folder for
// post-mortem inspection. Best-effort: a write failure is logged, not fatal.
func (r *Resource) writeManifest(deployment *appsv1.Deployment) {
	folder, err := r.svc.Folder()
	if err != nil {
		r.svc.Owner().Logger().Debug("manifest folder unavailable",
			"service", r.svc.Name(), "error", err)
		return
	}
	raw, err := yaml.Marshal(deployment)
	if err != nil {
		r.svc.Owner().Logger().Debug("manifest render failed",
			"service", r.svc.Name(), "error", err)
		return
	}
	path := filepath.Join(folder, r.svc.Name()+"-deployment.yaml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		r.svc.Owner().Logger().Debug("manifest write failed",
			"service", r.svc.Name(), "path", path, "error", err)
	}
}
