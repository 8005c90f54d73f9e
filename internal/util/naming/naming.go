package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// IAM limits role and policy names to 64 and 128 characters.
const (
	maxRoleNameLength   = 64
	maxPolicyNameLength = 128
)

func ServiceAccount(name string) string {
	return fmt.Sprintf("%s-serviceaccount", name)
}

func ClusterRole(name string) string {
	return fmt.Sprintf("%s-clusterrole", name)
}

func ClusterRoleBinding(name string) string {
	return fmt.Sprintf("%s-clusterrole-binding", name)
}

func LeaderElectionRole(name string) string {
	return fmt.Sprintf("%s-role", name)
}

func LeaderElectionRoleBinding(name string) string {
	return fmt.Sprintf("%s-rolebinding", name)
}

func WebhookService(name string) string {
	return fmt.Sprintf("%s-webhook-service", name)
}

func TLSSecret(name string) string {
	return fmt.Sprintf("%s-tls-secret", name)
}

func Deployment(name string) string {
	return fmt.Sprintf("%s-deployment", name)
}

func MutatingWebhook(name string) string {
	return fmt.Sprintf("%s-mutating-webhook", name)
}

func ValidatingWebhook(name string) string {
	return fmt.Sprintf("%s-validating-webhook", name)
}

// CACommonName is the subject common name of the webhook CA.
func CACommonName(name string) string {
	return fmt.Sprintf("%s-aws-load-balancer-controller", name)
}

// IAMRole returns the IAM role name for a component instance.
func IAMRole(name, cluster string) string {
	return truncate(fmt.Sprintf("%s-%s-lbc", name, cluster), maxRoleNameLength)
}

// IAMPolicy returns the IAM policy name for a component instance.
func IAMPolicy(name, cluster string) string {
	return truncate(fmt.Sprintf("%s-%s-lbc-policy", name, cluster), maxPolicyNameLength)
}

// truncate shortens s to max characters, replacing the tail with a short
// hash of the full value so truncated names stay unique.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	sum := sha256.Sum256([]byte(s))
	suffix := hex.EncodeToString(sum[:])[:8]
	return s[:max-len(suffix)-1] + "-" + suffix
}
