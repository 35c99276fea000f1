package k8scheck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

func ptr[T any](v T) *T { return &v }

func pod(ns, name string, mutate func(*corev1.Pod)) *corev1.Pod {
	p := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: name, Labels: map[string]string{"app": name}},
		Spec: corev1.PodSpec{
			AutomountServiceAccountToken: ptr(false),
			SecurityContext:              &corev1.PodSecurityContext{RunAsNonRoot: ptr(true)},
			Containers: []corev1.Container{{
				Name:  "app",
				Image: "registry.example.com/app:1.0",
				Resources: corev1.ResourceRequirements{Limits: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("500m"),
					corev1.ResourceMemory: resource.MustParse("256Mi"),
				}},
			}},
		},
	}
	if mutate != nil {
		mutate(p)
	}
	return p
}

func useCluster(t *testing.T, objects ...runtime.Object) {
	t.Helper()
	client := fake.NewSimpleClientset(objects...)
	orig := clientFor
	clientFor = func(Params) (kubernetes.Interface, error) { return client, nil }
	t.Cleanup(func() { clientFor = orig })
}

func run(t *testing.T, c *assert.Check[Params], p Params) *check.Result {
	t.Helper()
	result, err := c.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func TestPodChecks(t *testing.T) {
	tests := []struct {
		name  string
		check *assert.Check[Params]
		bad   func(*corev1.Pod)
	}{
		{"privileged", HasPrivilegedContainers, func(p *corev1.Pod) {
			p.Spec.Containers[0].SecurityContext = &corev1.SecurityContext{Privileged: ptr(true)}
		}},
		{"host network", UsesHostNetwork, func(p *corev1.Pod) {
			p.Spec.HostNetwork = true
		}},
		{"no limits", HasContainersWithoutLimits, func(p *corev1.Pod) {
			p.Spec.Containers[0].Resources = corev1.ResourceRequirements{}
		}},
		{"root user", HasContainersRunningAsRoot, func(p *corev1.Pod) {
			p.Spec.Containers[0].SecurityContext = &corev1.SecurityContext{RunAsUser: ptr(int64(0))}
		}},
		{"automount", AutomountsServiceAccountToken, func(p *corev1.Pod) {
			p.Spec.AutomountServiceAccountToken = ptr(true)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useCluster(t, pod("prod", "good", nil), pod("prod", "bad", tt.bad))
			result := run(t, tt.check, Params{Namespace: "prod"})
			if result.Status() != check.StatusOpen {
				t.Fatalf("expected OPEN, got %s", result.Status())
			}
			if len(result.Vulns()) != 1 || result.Vulns()[0].Where() != "prod/bad" {
				t.Errorf("unexpected vulns %+v", result.Vulns())
			}
			if len(result.Safes()) != 1 || result.Safes()[0].Where() != "prod/good" {
				t.Errorf("unexpected safes %+v", result.Safes())
			}

			useCluster(t, pod("prod", "good", nil))
			if got := run(t, tt.check, Params{Namespace: "prod"}).Status(); got != check.StatusClosed {
				t.Errorf("expected CLOSED for compliant pod, got %s", got)
			}
		})
	}
}

func TestRunsAsRoot_ContainerOverridesPod(t *testing.T) {
	p := pod("prod", "app", func(p *corev1.Pod) {
		p.Spec.SecurityContext = &corev1.PodSecurityContext{RunAsUser: ptr(int64(0))}
		p.Spec.Containers[0].SecurityContext = &corev1.SecurityContext{RunAsUser: ptr(int64(1000))}
		p.Spec.InitContainers = []corev1.Container{{Name: "init"}}
	})
	findings, err := runsAsRoot(context.Background(), nil, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 1 || findings[0] != "container init: runAsUser 0" {
		t.Errorf("unexpected findings %v", findings)
	}
}

func TestAutomount_FallsBackToServiceAccount(t *testing.T) {
	inherit := func(p *corev1.Pod) {
		p.Spec.AutomountServiceAccountToken = nil
		p.Spec.ServiceAccountName = "builder"
	}
	optedOut := &corev1.ServiceAccount{
		ObjectMeta:                   metav1.ObjectMeta{Namespace: "ci", Name: "builder"},
		AutomountServiceAccountToken: ptr(false),
	}

	useCluster(t, pod("ci", "job", inherit), optedOut)
	if got := run(t, AutomountsServiceAccountToken, Params{}).Status(); got != check.StatusClosed {
		t.Errorf("expected CLOSED when the service account opts out, got %s", got)
	}

	useCluster(t, pod("ci", "job", inherit))
	if got := run(t, AutomountsServiceAccountToken, Params{}).Status(); got != check.StatusOpen {
		t.Errorf("expected OPEN when the service account is missing, got %s", got)
	}
}

func TestSelectors(t *testing.T) {
	hostNet := func(p *corev1.Pod) { p.Spec.HostNetwork = true }
	useCluster(t,
		pod("kube-system", "proxy", hostNet),
		pod("prod", "web", nil),
		pod("prod", "agent", hostNet),
	)

	if got := run(t, UsesHostNetwork, Params{ExcludeNamespaces: []string{"kube-system"}, LabelSelector: "app=web"}).Status(); got != check.StatusClosed {
		t.Errorf("expected CLOSED for web pods only, got %s", got)
	}
	result := run(t, UsesHostNetwork, Params{ExcludeNamespaces: []string{"kube-system"}})
	if result.Status() != check.StatusOpen || len(result.Vulns()) != 1 {
		t.Errorf("expected only prod/agent, got %s with %d vulns", result.Status(), len(result.Vulns()))
	}

	useCluster(t)
	result = run(t, UsesHostNetwork, Params{Namespace: "empty"})
	if result.Status() != check.StatusClosed || result.Safes()[0].Where() != "empty" {
		t.Errorf("expected CLOSED for empty namespace, got %s", result.Status())
	}
}

func TestMissingKubeconfigIsUnknown(t *testing.T) {
	p := Params{Kubeconfig: "/nonexistent/kubeconfig", Context: "missing"}
	if got := run(t, HasPrivilegedContainers, p).Status(); got != check.StatusUnknown {
		t.Errorf("expected UNKNOWN, got %s", got)
	}
}

func TestRegister(t *testing.T) {
	r := assert.NewRegistry()
	Register(r)
	if got := len(r.Names()); got != 5 {
		t.Errorf("expected 5 checks, got %d", got)
	}
}

const kubeconfigTemplate = `apiVersion: v1
kind: Config
clusters:
- name: %[1]s
  cluster:
    server: https://%[1]s.example.com:6443
contexts:
- name: %[1]s
  context:
    cluster: %[1]s
    user: %[1]s
- name: other
  context:
    cluster: %[1]s
    user: %[1]s
current-context: other
users:
- name: %[1]s
  user:
    token: test-token
`

func writeKubeconfig(t *testing.T, dir, cluster string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, "config")
	if err := os.WriteFile(path, []byte(fmt.Sprintf(kubeconfigTemplate, cluster)), 0o600); err != nil {
		t.Fatalf("write kubeconfig: %v", err)
	}
	return path
}

func TestRestConfigLoading(t *testing.T) {
	t.Run("context from home kubeconfig", func(t *testing.T) {
		home := t.TempDir()
		writeKubeconfig(t, filepath.Join(home, ".kube"), "homecluster")
		t.Setenv("HOME", home)
		t.Setenv("KUBECONFIG", "")
		t.Setenv("KUBERNETES_SERVICE_HOST", "")

		cfg, err := restConfig(Params{Context: "homecluster"})
		if err != nil {
			t.Fatalf("restConfig failed: %v", err)
		}
		if cfg.Host != "https://homecluster.example.com:6443" {
			t.Fatalf("unexpected host %q", cfg.Host)
		}
	})

	t.Run("KUBECONFIG env", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		t.Setenv("KUBECONFIG", writeKubeconfig(t, t.TempDir(), "envcluster"))

		cfg, err := restConfig(Params{})
		if err != nil {
			t.Fatalf("restConfig failed: %v", err)
		}
		if cfg.Host != "https://envcluster.example.com:6443" {
			t.Fatalf("unexpected host %q", cfg.Host)
		}
		if _, err := buildClient(Params{Context: "envcluster"}); err != nil {
			t.Fatalf("buildClient failed: %v", err)
		}
	})

	t.Run("explicit path wins over KUBECONFIG", func(t *testing.T) {
		t.Setenv("KUBECONFIG", writeKubeconfig(t, t.TempDir(), "envcluster"))
		explicit := writeKubeconfig(t, t.TempDir(), "explicit")

		cfg, err := restConfig(Params{Kubeconfig: explicit, Context: "explicit"})
		if err != nil {
			t.Fatalf("restConfig failed: %v", err)
		}
		if cfg.Host != "https://explicit.example.com:6443" {
			t.Fatalf("unexpected host %q", cfg.Host)
		}
	})

	t.Run("unknown context", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		t.Setenv("KUBECONFIG", writeKubeconfig(t, t.TempDir(), "envcluster"))

		_, err := restConfig(Params{Context: "missing"})
		if !errors.Is(err, sharedErrors.ErrInvalidParameter) {
			t.Fatalf("expected ErrInvalidParameter, got %v", err)
		}
	})
}
