// Package kubernetes backs image-declared services with Deployments on a
// Kubernetes cluster. A blank import registers the binding:
//
//	import _ "github.com/Sgitario/jester/resources/kubernetes"
//
// The binding serves every service declaring a container image. Each service
// becomes one Deployment plus one NodePort Service per declared port; the
// first start provisions them, later starts reuse and update what the first
// start created, and readiness gates on the declared expected log line
// observed in the pod's log stream.
//
// Connection and workload tunables resolve through the service property
// cascade:
//
//	kubernetes.kubeconfig  explicit kubeconfig path (default: standard loading rules)
//	kubernetes.context     kubeconfig context to use
//	kubernetes.namespace   target namespace (default "default")
//	kubernetes.template    deployment manifest template merged with the declaration
//	kubernetes.node-host   overrides the node address used as the service host
package kubernetes
