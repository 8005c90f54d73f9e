package stack

import (
	"fmt"
	"regexp"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/graph"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/state"
)

var resourceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?$`)

// Stack holds resource registrations in declaration order.
type Stack struct {
	name      string
	resources []Resource
	byURN     map[URN]Resource
}

// New returns an empty stack.
func New(name string) (*Stack, error) {
	if err := state.ValidateStackName(name); err != nil {
		return nil, err
	}
	return &Stack{name: name, byURN: map[URN]Resource{}}, nil
}

// Name returns the stack name.
func (s *Stack) Name() string { return s.name }

// Resources returns the registered resources in declaration order.
func (s *Stack) Resources() []Resource {
	out := make([]Resource, len(s.resources))
	copy(out, s.resources)
	return out
}

// Get returns the resource registered under urn, or nil.
func (s *Stack) Get(urn URN) Resource { return s.byURN[urn] }

// RegisterResource assigns res its URN and dependencies and adds it to the
// stack. Every dependency must already be registered on this stack.
func (s *Stack) RegisterResource(typ, name string, res Resource, opts ...ResourceOption) error {
	if !resourceNamePattern.MatchString(name) {
		return fmt.Errorf("invalid resource name %q", name)
	}
	urn := NewURN(s.name, typ, name)
	if res == nil || isNilResource(res) {
		return fmt.Errorf("resource %s is nil", urn)
	}
	if _, exists := s.byURN[urn]; exists {
		return fmt.Errorf("duplicate resource %s", urn)
	}

	var o resourceOptions
	for _, opt := range opts {
		opt(&o)
	}
	for _, dep := range o.dependsOn {
		if isNilResource(dep) {
			return fmt.Errorf("resource %s depends on a nil %T", urn, dep)
		}
		depURN := dep.URN()
		if depURN == "" || s.byURN[depURN] != dep {
			return fmt.Errorf("resource %s depends on %q which is not registered in stack %s", urn, depURN, s.name)
		}
	}

	rs := res.resourceState()
	rs.urn = urn
	rs.deps = o.dependsOn

	s.resources = append(s.resources, res)
	s.byURN[urn] = res
	return nil
}

func (s *Stack) graph() (*graph.DirectedAcyclicGraph, error) {
	g := graph.NewDirectedAcyclicGraph()
	for _, res := range s.resources {
		if err := g.AddVertex(string(res.URN())); err != nil {
			return nil, err
		}
	}
	for _, res := range s.resources {
		for _, dep := range res.Dependencies() {
			if err := g.AddEdge(string(res.URN()), string(dep.URN())); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// Levels groups resources so that every resource comes after all of its
// dependencies. Resources within a level are independent and sorted by URN.
func (s *Stack) Levels() ([][]Resource, error) {
	g, err := s.graph()
	if err != nil {
		return nil, err
	}
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	out := make([][]Resource, len(levels))
	for i, level := range levels {
		for _, urn := range level {
			out[i] = append(out[i], s.byURN[URN(urn)])
		}
	}
	return out, nil
}

// Order returns resources in dependency order. The order is deterministic.
// A dependency cycle yields a *graph.CycleError.
func (s *Stack) Order() ([]Resource, error) {
	levels, err := s.Levels()
	if err != nil {
		return nil, err
	}
	var out []Resource
	for _, level := range levels {
		out = append(out, level...)
	}
	return out, nil
}
