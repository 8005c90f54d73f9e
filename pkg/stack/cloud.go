package stack

import (
	"context"
	"fmt"
	"slices"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/state"
)

// ensureCloud creates or updates cloud resources, roles first, and returns
// the ARNs reported by AWS keyed by resource name.
func ensureCloud(ctx context.Context, env *Env, items []CloudResource) (map[string]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if env.IAM == nil {
		return nil, errNoIAM
	}

	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b CloudResource) int {
		return cloudRank(a.Kind) - cloudRank(b.Kind)
	})

	arns := map[string]string{}
	for _, c := range sorted {
		switch c.Kind {
		case KindIAMRole:
			arn, err := env.IAM.EnsureRole(ctx, c.Name, c.Document, c.Tags)
			if err != nil {
				return nil, err
			}
			arns[c.Name] = arn
		case KindIAMPolicy:
			arn, err := env.IAM.EnsurePolicy(ctx, c.Name, c.ARN, c.Document, c.Tags)
			if err != nil {
				return nil, err
			}
			arns[c.Name] = arn
		case KindIAMPolicyAttachment:
			if err := env.IAM.EnsureAttachment(ctx, c.Role, c.PolicyARN); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unsupported cloud resource kind %q", c.Kind)
		}
	}
	return arns, nil
}

// destroyCloud deletes cloud resources in reverse creation order:
// attachments, then policies, then roles. Missing resources are ignored.
func destroyCloud(ctx context.Context, env *Env, refs []state.CloudRef) error {
	if len(refs) == 0 {
		return nil
	}
	if env.IAM == nil {
		return errNoIAM
	}
	logger := log.FromContext(ctx)

	sorted := slices.Clone(refs)
	slices.SortStableFunc(sorted, func(a, b state.CloudRef) int {
		return cloudRank(b.Kind) - cloudRank(a.Kind)
	})

	for _, ref := range sorted {
		logger.V(1).Info("deleting cloud resource", "kind", ref.Kind, "name", ref.Name)
		var err error
		switch ref.Kind {
		case KindIAMPolicyAttachment:
			err = env.IAM.DetachPolicy(ctx, ref.Role, ref.PolicyARN)
		case KindIAMPolicy:
			err = env.IAM.DeletePolicy(ctx, ref.ARN)
		case KindIAMRole:
			err = env.IAM.DeleteRole(ctx, ref.Name)
		default:
			err = fmt.Errorf("unsupported cloud resource kind %q", ref.Kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// staleCloud returns the refs of prev that are not in desired.
func staleCloud(prev []state.CloudRef, desired []CloudResource) []state.CloudRef {
	keep := map[string]bool{}
	for _, c := range desired {
		keep[CloudRef(c).Key()] = true
	}
	var out []state.CloudRef
	for _, ref := range prev {
		if !keep[ref.Key()] {
			out = append(out, ref)
		}
	}
	return out
}
