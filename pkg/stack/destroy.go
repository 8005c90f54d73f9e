package stack

import (
	"context"
	"fmt"
	"slices"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/graph"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/state"
)

// Destroy deletes every recorded resource of the stack in reverse dependency
// order. The stored state is removed once no records remain.
func (s *Stack) Destroy(ctx context.Context, env *Env) (*Summary, error) {
	env = env.withDefaults()
	if env.Backend == nil {
		return nil, errNoBackend
	}
	st, err := env.Backend.Load(ctx, s.name)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	summary := newSummary()
	if len(st.Resources) == 0 {
		log.FromContext(ctx).Info("nothing to destroy", "stack", s.name)
		return summary, nil
	}

	w := &stateWriter{st: st, backend: env.Backend}
	urns := make([]string, 0, len(st.Resources))
	for _, rec := range st.Resources {
		urns = append(urns, rec.URN)
	}
	if err := destroyRecords(ctx, env, w, urns, nil, summary); err != nil {
		return summary, err
	}
	if err := summary.Err(); err != nil {
		return summary, err
	}

	if len(w.st.Resources) == 0 {
		if err := env.Backend.Remove(ctx, s.name); err != nil {
			return summary, fmt.Errorf("failed to remove state: %w", err)
		}
	}
	return summary, nil
}

// destroyOrder returns urns so that every record comes before the records it
// depends on.
func destroyOrder(st *state.State, urns []string) ([]string, error) {
	g := graph.NewDirectedAcyclicGraph()
	for _, urn := range urns {
		if err := g.AddVertex(urn); err != nil {
			return nil, err
		}
	}
	for _, urn := range urns {
		rec := st.Find(urn)
		for _, dep := range rec.Dependencies {
			if !slices.Contains(urns, dep) {
				continue
			}
			if err := g.AddEdge(urn, dep); err != nil {
				return nil, err
			}
		}
	}
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	var out []string
	for i := len(levels) - 1; i >= 0; i-- {
		out = append(out, levels[i]...)
	}
	return out, nil
}

// destroyRecords deletes the given records one at a time. When a record
// fails, the records it depends on are kept and reported as skipped. Objects
// and cloud resources in wanted are left in place; wanted may be nil.
func destroyRecords(ctx context.Context, env *Env, w *stateWriter, urns []string, wanted *claims, summary *Summary) error {
	order, err := destroyOrder(w.st, urns)
	if err != nil {
		return err
	}

	kept := map[string]bool{}
	for _, urn := range order {
		rec := w.record(urn)
		if rec == nil {
			continue
		}
		if kept[urn] {
			summary.add(&summary.Skipped, URN(urn))
			env.Metrics.SkipResource("destroy", rec.Type)
			emit(ctx, env, EventResourceSkipped, URN(urn), "skipped: a dependent resource could not be deleted", nil)
			for _, dep := range rec.Dependencies {
				kept[dep] = true
			}
			continue
		}

		if err := destroyRecord(ctx, env, w, wanted, rec); err != nil {
			summary.fail(URN(urn), err)
			for _, dep := range rec.Dependencies {
				kept[dep] = true
			}
			continue
		}
		summary.add(&summary.Deleted, URN(urn))
	}
	return nil
}

func destroyRecord(ctx context.Context, env *Env, w *stateWriter, wanted *claims, rec *state.Record) (err error) {
	urn := URN(rec.URN)
	ctx = log.IntoContext(ctx, log.FromContext(ctx).WithValues("urn", rec.URN))
	start := time.Now()
	emit(ctx, env, EventResourceDeleting, urn, "deleting", nil)
	defer func() {
		env.Metrics.ObserveResource("destroy", rec.Type, err, time.Since(start))
		if err != nil {
			emit(ctx, env, EventResourceFailed, urn, "failed", err)
			return
		}
		emit(ctx, env, EventResourceDeleted, urn, fmt.Sprintf("deleted in %v", time.Since(start).Round(time.Millisecond)), nil)
	}()

	objects := wanted.unclaimedObjects(urn, rec.Objects)
	if len(objects) > 0 {
		if !env.Online() {
			return errNoKube
		}
		if err := deleteObjects(ctx, env, objects); err != nil {
			return err
		}
	}
	if err := destroyCloud(ctx, env, wanted.unclaimedCloud(urn, rec.Cloud)); err != nil {
		return err
	}
	return w.remove(ctx, rec.URN)
}
