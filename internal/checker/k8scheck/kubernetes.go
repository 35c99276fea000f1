// Package k8scheck audits running pod specs for insecure workload settings.
package k8scheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

const sourcePods = "Kubernetes/Pods"

var errorChecks = append([]error{sharedErrors.ErrAuthentication}, assert.NetworkErrors...)

// Params selects the cluster and the pods to audit. An empty namespace
// means all namespaces.
type Params struct {
	Kubeconfig        string   `mapstructure:"kubeconfig"`
	Context           string   `mapstructure:"context"`
	Namespace         string   `mapstructure:"namespace"`
	LabelSelector     string   `mapstructure:"label_selector"`
	ExcludeNamespaces []string `mapstructure:"exclude_namespaces"`
}

// clientFor is replaced in tests.
var clientFor = buildClient

// restConfig resolves the cluster connection. An explicit kubeconfig wins,
// then $KUBECONFIG, then ~/.kube/config. The in-cluster config is tried first
// only when neither kubeconfig nor context is given and $KUBECONFIG is unset.
func restConfig(p Params) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.MigrationRules = nil
	switch {
	case p.Kubeconfig != "":
		rules.ExplicitPath = p.Kubeconfig
	case os.Getenv(clientcmd.RecommendedConfigPathEnvVar) == "":
		if p.Context == "" {
			if cfg, err := rest.InClusterConfig(); err == nil {
				return cfg, nil
			}
		}
		// RecommendedHomeFile is fixed at init; resolve HOME per call.
		if home, err := os.UserHomeDir(); err == nil {
			rules.Precedence = []string{filepath.Join(home, clientcmd.RecommendedHomeDir, clientcmd.RecommendedFileName)}
		}
	}

	loader := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		rules,
		&clientcmd.ConfigOverrides{CurrentContext: p.Context},
	)
	cfg, err := loader.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: load kubeconfig: %v", sharedErrors.ErrInvalidParameter, err)
	}
	return cfg, nil
}

func buildClient(p Params) (kubernetes.Interface, error) {
	cfg, err := restConfig(p)
	if err != nil {
		return nil, err
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: build client: %v", sharedErrors.ErrInvalidParameter, err)
	}
	return client, nil
}

func classify(err error) error {
	if apierrors.IsForbidden(err) || apierrors.IsUnauthorized(err) {
		return fmt.Errorf("%w: %v", sharedErrors.ErrAuthentication, err)
	}
	return err
}

// podInspector returns the findings for one pod; none means compliant.
type podInspector func(ctx context.Context, client kubernetes.Interface, pod *corev1.Pod) ([]string, error)

func podCheck(meta assert.Meta, openMsg, closedMsg string, inspect podInspector) *assert.Check[Params] {
	return assert.API(meta, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
		client, err := clientFor(p)
		if err != nil {
			return check.Outcome{}, err
		}
		pods, err := client.CoreV1().Pods(p.Namespace).List(ctx, metav1.ListOptions{LabelSelector: p.LabelSelector})
		if err != nil {
			return check.Outcome{}, classify(err)
		}

		excluded := make(map[string]bool, len(p.ExcludeNamespaces))
		for _, ns := range p.ExcludeNamespaces {
			excluded[ns] = true
		}
		items := pods.Items
		sort.Slice(items, func(i, j int) bool {
			if items[i].Namespace != items[j].Namespace {
				return items[i].Namespace < items[j].Namespace
			}
			return items[i].Name < items[j].Name
		})

		var vulns, safes []check.Unit
		for i := range items {
			pod := &items[i]
			if excluded[pod.Namespace] {
				continue
			}
			findings, err := inspect(ctx, client, pod)
			if err != nil {
				return check.Outcome{}, classify(err)
			}
			where := pod.Namespace + "/" + pod.Name
			if len(findings) > 0 {
				vulns = append(vulns, check.NewUnit(where, findings, check.WithSource(sourcePods)))
			} else {
				safes = append(safes, check.NewUnit(where, []string{"compliant"}, check.WithSource(sourcePods)))
			}
		}
		if len(vulns) == 0 && len(safes) == 0 {
			scope := p.Namespace
			if scope == "" {
				scope = "all namespaces"
			}
			safes = append(safes, check.NewUnit(scope, []string{"no pods matched"}, check.WithSource(sourcePods)))
		}
		return check.Classify(openMsg, closedMsg, vulns, safes), nil
	}, errorChecks...))
}

// containers yields init and regular containers in spec order.
func containers(pod *corev1.Pod) []corev1.Container {
	all := make([]corev1.Container, 0, len(pod.Spec.InitContainers)+len(pod.Spec.Containers))
	all = append(all, pod.Spec.InitContainers...)
	return append(all, pod.Spec.Containers...)
}

func privileged(_ context.Context, _ kubernetes.Interface, pod *corev1.Pod) ([]string, error) {
	var findings []string
	for _, c := range containers(pod) {
		sc := c.SecurityContext
		if sc == nil {
			continue
		}
		if sc.Privileged != nil && *sc.Privileged {
			findings = append(findings, "container "+c.Name+": privileged")
		}
		if sc.AllowPrivilegeEscalation != nil && *sc.AllowPrivilegeEscalation {
			findings = append(findings, "container "+c.Name+": allowPrivilegeEscalation")
		}
	}
	return findings, nil
}

func hostNetwork(_ context.Context, _ kubernetes.Interface, pod *corev1.Pod) ([]string, error) {
	if pod.Spec.HostNetwork {
		return []string{"hostNetwork: true"}, nil
	}
	return nil, nil
}

func missingLimits(_ context.Context, _ kubernetes.Interface, pod *corev1.Pod) ([]string, error) {
	var findings []string
	for _, c := range pod.Spec.Containers {
		var missing []string
		if _, ok := c.Resources.Limits[corev1.ResourceCPU]; !ok {
			missing = append(missing, "cpu")
		}
		if _, ok := c.Resources.Limits[corev1.ResourceMemory]; !ok {
			missing = append(missing, "memory")
		}
		if len(missing) > 0 {
			findings = append(findings, fmt.Sprintf("container %s: no %v limit", c.Name, missing))
		}
	}
	return findings, nil
}

// runsAsRoot resolves the effective user per container; container settings
// override the pod security context.
func runsAsRoot(_ context.Context, _ kubernetes.Interface, pod *corev1.Pod) ([]string, error) {
	var podUser *int64
	var podNonRoot *bool
	if psc := pod.Spec.SecurityContext; psc != nil {
		podUser, podNonRoot = psc.RunAsUser, psc.RunAsNonRoot
	}
	var findings []string
	for _, c := range containers(pod) {
		user, nonRoot := podUser, podNonRoot
		if sc := c.SecurityContext; sc != nil {
			if sc.RunAsUser != nil {
				user = sc.RunAsUser
			}
			if sc.RunAsNonRoot != nil {
				nonRoot = sc.RunAsNonRoot
			}
		}
		switch {
		case user != nil && *user == 0:
			findings = append(findings, "container "+c.Name+": runAsUser 0")
		case user == nil && (nonRoot == nil || !*nonRoot):
			findings = append(findings, "container "+c.Name+": runAsNonRoot not set")
		}
	}
	return findings, nil
}

// automountsToken falls back to the service account setting when the pod
// does not decide; both unset means the token is mounted.
func automountsToken(ctx context.Context, client kubernetes.Interface, pod *corev1.Pod) ([]string, error) {
	if v := pod.Spec.AutomountServiceAccountToken; v != nil {
		if *v {
			return []string{"automountServiceAccountToken: true"}, nil
		}
		return nil, nil
	}
	name := pod.Spec.ServiceAccountName
	if name == "" {
		name = "default"
	}
	sa, err := client.CoreV1().ServiceAccounts(pod.Namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return []string{"serviceaccount " + name + " not found, token mounted by default"}, nil
		}
		return nil, err
	}
	if sa.AutomountServiceAccountToken != nil && !*sa.AutomountServiceAccountToken {
		return nil, nil
	}
	return []string{"serviceaccount " + name + " mounts its token"}, nil
}

// HasPrivilegedContainers flags privileged or escalation-capable containers.
var HasPrivilegedContainers = podCheck(assert.Meta{
	Name:        "cloud.kubernetes.has_privileged_containers",
	Description: "OPEN when a pod runs a privileged container or allows privilege escalation.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, "Pods run privileged containers", "No privileged containers found", privileged)

// UsesHostNetwork flags pods sharing the node network namespace.
var UsesHostNetwork = podCheck(assert.Meta{
	Name:        "cloud.kubernetes.uses_host_network",
	Description: "OPEN when a pod shares the host network namespace.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, "Pods use the host network", "No pods use the host network", hostNetwork)

// HasContainersWithoutLimits flags containers without CPU or memory limits.
var HasContainersWithoutLimits = podCheck(assert.Meta{
	Name:        "cloud.kubernetes.has_containers_without_limits",
	Description: "OPEN when a container has no CPU or memory limit.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, "Containers run without resource limits", "All containers have resource limits", missingLimits)

// HasContainersRunningAsRoot flags containers that may run as UID 0.
var HasContainersRunningAsRoot = podCheck(assert.Meta{
	Name:        "cloud.kubernetes.has_containers_running_as_root",
	Description: "OPEN when a container can run as root.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, "Containers can run as root", "All containers run as non-root", runsAsRoot)

// AutomountsServiceAccountToken flags pods that mount API credentials.
var AutomountsServiceAccountToken = podCheck(assert.Meta{
	Name:        "cloud.kubernetes.automounts_service_account_token",
	Description: "OPEN when a pod mounts its service account token.",
	Risk:        check.RiskLow,
	Kind:        check.KindDAST,
}, "Pods mount service account tokens", "No pods mount service account tokens", automountsToken)

// Register adds every Kubernetes check to r.
func Register(r *assert.Registry) {
	assert.MustRegister(r, HasPrivilegedContainers)
	assert.MustRegister(r, UsesHostNetwork)
	assert.MustRegister(r, HasContainersWithoutLimits)
	assert.MustRegister(r, HasContainersRunningAsRoot)
	assert.MustRegister(r, AutomountsServiceAccountToken)
}
