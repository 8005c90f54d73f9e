package stack

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/state"
)

// Action is the planned change to a resource or item.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionSame   Action = "same"
)

// ItemChange is the planned change to one object or cloud resource.
type ItemChange struct {
	Key    string
	Action Action
}

// Change is the planned change to a resource.
type Change struct {
	URN    URN
	Action Action
	Items  []ItemChange
}

// Preview compares desired fingerprints with the recorded state. Declared
// resources come first in dependency order, followed by recorded resources
// that are no longer declared.
func (s *Stack) Preview(ctx context.Context, env *Env) ([]Change, error) {
	env = env.withDefaults()
	if env.Backend == nil {
		return nil, errNoBackend
	}
	st, err := env.Backend.Load(ctx, s.name)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	rendered, err := s.Render(ctx, env)
	if err != nil {
		return nil, err
	}

	var changes []Change
	declared := map[string]bool{}
	for _, r := range rendered {
		declared[string(r.URN)] = true
		defaultNamespaces(ctx, env, r.Desired.Objects)
		fps, err := fingerprints(r.Desired)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.URN, err)
		}
		changes = append(changes, diff(r.URN, st.Find(string(r.URN)), fps))
	}

	for i := len(st.Resources) - 1; i >= 0; i-- {
		rec := st.Resources[i]
		if declared[rec.URN] {
			continue
		}
		changes = append(changes, diff(URN(rec.URN), &rec, nil))
	}
	return changes, nil
}

func diff(urn URN, rec *state.Record, desired map[string]string) Change {
	var recorded map[string]string
	if rec != nil {
		recorded = rec.Fingerprints
	}

	keys := make([]string, 0, len(desired)+len(recorded))
	for k := range desired {
		keys = append(keys, k)
	}
	for k := range recorded {
		if _, ok := desired[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	change := Change{URN: urn}
	for _, k := range keys {
		want, inDesired := desired[k]
		have, inRecord := recorded[k]
		var a Action
		switch {
		case !inRecord:
			a = ActionCreate
		case !inDesired:
			a = ActionDelete
		case want != have:
			a = ActionUpdate
		default:
			a = ActionSame
		}
		change.Items = append(change.Items, ItemChange{Key: k, Action: a})
	}

	switch {
	case rec == nil:
		change.Action = ActionCreate
	case desired == nil:
		change.Action = ActionDelete
	case slices.ContainsFunc(change.Items, func(i ItemChange) bool { return i.Action != ActionSame }):
		change.Action = ActionUpdate
	default:
		change.Action = ActionSame
	}
	return change
}

// Summarize counts resources per action.
func Summarize(changes []Change) map[Action]int {
	out := map[Action]int{}
	for _, c := range changes {
		out[c.Action]++
	}
	return out
}
