package stack

import (
	"context"
	"fmt"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/util/labels"
)

// Rendered is the desired state of one resource.
type Rendered struct {
	URN          URN
	Dependencies []URN
	Desired      *Desired
}

// Render computes the desired state of every resource in dependency order
// without changing AWS or the cluster. env.Kube may be nil; when set it is
// only read from.
func (s *Stack) Render(ctx context.Context, env *Env) ([]Rendered, error) {
	env = env.withDefaults()
	order, err := s.Order()
	if err != nil {
		return nil, err
	}

	out := make([]Rendered, 0, len(order))
	for _, res := range order {
		d, err := desired(ctx, env, res)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", res.URN(), err)
		}
		r := Rendered{URN: res.URN(), Desired: d}
		for _, dep := range res.Dependencies() {
			r.Dependencies = append(r.Dependencies, dep.URN())
		}
		out = append(out, r)
	}
	return out, nil
}

// desired computes the desired state of res and stamps every object with the
// URN of the resource that declared it.
func desired(ctx context.Context, env *Env, res Resource) (*Desired, error) {
	d, err := res.Desired(ctx, env)
	if err != nil {
		return nil, err
	}
	if d == nil {
		d = &Desired{}
	}
	for _, obj := range d.Objects {
		annotations := obj.GetAnnotations()
		if annotations == nil {
			annotations = map[string]string{}
		}
		annotations[labels.AnnotationURN] = string(res.URN())
		obj.SetAnnotations(annotations)
	}
	return d, nil
}
