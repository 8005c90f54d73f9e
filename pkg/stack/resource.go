package stack

import (
	"context"
	"reflect"
	"slices"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Kinds of cloud resources a resource may declare.
const (
	KindIAMRole             = "aws:iam:Role"
	KindIAMPolicy           = "aws:iam:Policy"
	KindIAMPolicyAttachment = "aws:iam:RolePolicyAttachment"
)

// cloudKindOrder is the order cloud resources are created in. They are
// deleted in reverse.
var cloudKindOrder = []string{KindIAMRole, KindIAMPolicy, KindIAMPolicyAttachment}

func cloudRank(kind string) int {
	if i := slices.Index(cloudKindOrder, kind); i >= 0 {
		return i
	}
	return len(cloudKindOrder)
}

// CloudResource is an AWS resource a resource depends on.
type CloudResource struct {
	Kind string
	Name string
	// ARN is known up front for policies and roles; ARNs are derived from
	// the account and partition of the OIDC provider.
	ARN string
	// Document is the trust policy of a role or the document of a policy.
	Document string
	Tags     map[string]string
	// Role and PolicyARN are set on attachments.
	Role      string
	PolicyARN string
}

// Desired is everything a resource wants to exist.
type Desired struct {
	Cloud   []CloudResource
	Objects []*unstructured.Unstructured
	// Outputs are values exposed after apply, such as the role ARN.
	Outputs map[string]string
}

// Resource is a declared unit of infrastructure.
type Resource interface {
	// URN identifies the resource within its stack.
	URN() URN
	// Dependencies are the resources that must be applied first.
	Dependencies() []Resource
	// Desired computes the resource's desired state. env.Kube may be nil
	// when rendering offline.
	Desired(ctx context.Context, env *Env) (*Desired, error)

	resourceState() *ResourceState
}

// ResourceState is embedded by every resource implementation and filled in
// by Stack.RegisterResource.
type ResourceState struct {
	urn  URN
	deps []Resource
}

// URN returns the resource's URN.
func (r *ResourceState) URN() URN { return r.urn }

// Dependencies returns the resources declared with DependsOn.
func (r *ResourceState) Dependencies() []Resource { return slices.Clone(r.deps) }

func (r *ResourceState) resourceState() *ResourceState { return r }

type resourceOptions struct {
	dependsOn []Resource
}

// ResourceOption customizes how a resource is registered.
type ResourceOption func(*resourceOptions)

// DependsOn orders the resource after each of res. Nil entries are ignored;
// a nil pointer of a concrete resource type is rejected at registration.
func DependsOn(res ...Resource) ResourceOption {
	return func(o *resourceOptions) {
		for _, r := range res {
			if r != nil {
				o.dependsOn = append(o.dependsOn, r)
			}
		}
	}
}

// isNilResource reports whether r holds a nil pointer, such as the result of
// a constructor whose error was ignored.
func isNilResource(r Resource) bool {
	v := reflect.ValueOf(r)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
