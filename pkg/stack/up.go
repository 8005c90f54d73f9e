package stack

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/state"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/util/async"
)

// Summary reports what an operation did to each resource.
type Summary struct {
	Applied []URN
	Skipped []URN
	Failed  []URN
	Deleted []URN
	// Errors holds the failure of every resource in Failed.
	Errors map[URN]error

	mu sync.Mutex
}

func newSummary() *Summary {
	return &Summary{Errors: map[URN]error{}}
}

func (s *Summary) add(list *[]URN, urn URN) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*list = append(*list, urn)
}

func (s *Summary) fail(urn URN, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failed = append(s.Failed, urn)
	s.Errors[urn] = err
}

// demote moves an applied resource to Failed.
func (s *Summary) demote(urn URN, err error) {
	s.mu.Lock()
	s.Applied = slices.DeleteFunc(s.Applied, func(u URN) bool { return u == urn })
	s.mu.Unlock()
	s.fail(urn, err)
}

// Err joins the errors of all failed resources, or returns nil.
func (s *Summary) Err() error {
	var errs []error
	for _, urn := range s.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", urn, s.Errors[urn]))
	}
	return errors.Join(errs...)
}

// stateWriter serializes record updates and saves after each one.
type stateWriter struct {
	mu      sync.Mutex
	st      *state.State
	backend state.Backend
}

func (w *stateWriter) record(urn string) *state.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	if rec := w.st.Find(urn); rec != nil {
		cp := *rec
		return &cp
	}
	return nil
}

func (w *stateWriter) upsert(ctx context.Context, rec state.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st.Upsert(rec)
	return w.save(ctx)
}

func (w *stateWriter) remove(ctx context.Context, urn string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st.Remove(urn)
	return w.save(ctx)
}

func (w *stateWriter) save(ctx context.Context) error {
	w.st.UpdatedAt = time.Now().UTC()
	if err := w.backend.Save(ctx, w.st); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Up applies every declared resource level by level. Resources within a
// level run in parallel. A resource whose dependency failed or was skipped is
// skipped. Once every level has run, objects and cloud resources an applied
// resource no longer wants are pruned, and recorded resources that are no
// longer declared are destroyed, but only when every declared resource
// applied. Neither step deletes anything another declared resource wants.
//
// The returned error is non-nil when the operation could not start or any
// resource failed; the summary is always returned once the state is loaded.
func (s *Stack) Up(ctx context.Context, env *Env) (*Summary, error) {
	env = env.withDefaults()
	if !env.Online() {
		return nil, errNoKube
	}
	if env.Backend == nil {
		return nil, errNoBackend
	}

	levels, err := s.Levels()
	if err != nil {
		return nil, err
	}
	st, err := env.Backend.Load(ctx, s.name)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	w := &stateWriter{st: st, backend: env.Backend}
	summary := newSummary()
	blocked := map[URN]bool{}
	wanted := newClaims()

	for _, level := range levels {
		var tasks []async.Task
		for _, res := range level {
			urn := res.URN()
			if dep := blockedDependency(res, blocked); dep != "" {
				summary.add(&summary.Skipped, urn)
				env.Metrics.SkipResource("up", urn.Type())
				emit(ctx, env, EventResourceSkipped, urn, fmt.Sprintf("skipped: dependency %s did not apply", dep), nil)
				continue
			}
			tasks = append(tasks, async.Task{
				Name: string(urn),
				Func: func(ctx context.Context) error {
					return s.applyResource(ctx, env, w, wanted, res)
				},
			})
		}

		for _, r := range async.Run(ctx, tasks, env.Parallelism) {
			urn := URN(r.Name)
			if r.Err != nil {
				summary.fail(urn, r.Err)
				continue
			}
			summary.add(&summary.Applied, urn)
		}

		// skipped and failed resources both block their dependents
		for _, urn := range summary.Skipped {
			blocked[urn] = true
		}
		for _, urn := range summary.Failed {
			blocked[urn] = true
		}
	}

	// resources that did not apply keep what their records hold
	applied := map[URN]bool{}
	for _, urn := range summary.Applied {
		applied[urn] = true
	}
	for _, res := range s.resources {
		if applied[res.URN()] {
			continue
		}
		if rec := w.record(string(res.URN())); rec != nil {
			wanted.addRecord(rec)
		}
	}
	s.prune(ctx, env, w, levels, applied, wanted, summary)

	if len(summary.Failed) == 0 && len(summary.Skipped) == 0 {
		orphans := s.orphans(w.st)
		if len(orphans) > 0 {
			log.FromContext(ctx).Info("destroying resources no longer declared", "count", len(orphans))
			if err := destroyRecords(ctx, env, w, orphans, wanted, summary); err != nil {
				return summary, err
			}
		}
	}
	return summary, summary.Err()
}

func blockedDependency(res Resource, blocked map[URN]bool) URN {
	for _, dep := range res.Dependencies() {
		if blocked[dep.URN()] {
			return dep.URN()
		}
	}
	return ""
}

// orphans returns the URNs of recorded resources that are not declared.
func (s *Stack) orphans(st *state.State) []string {
	var out []string
	for _, rec := range st.Resources {
		if s.byURN[URN(rec.URN)] == nil {
			out = append(out, rec.URN)
		}
	}
	return out
}

func (s *Stack) applyResource(ctx context.Context, env *Env, w *stateWriter, wanted *claims, res Resource) (err error) {
	urn := res.URN()
	ctx = log.IntoContext(ctx, log.FromContext(ctx).WithValues("urn", string(urn)))
	start := time.Now()
	emit(ctx, env, EventResourceApplying, urn, "applying", nil)
	defer func() {
		env.Metrics.ObserveResource("up", urn.Type(), err, time.Since(start))
		if err != nil {
			emit(ctx, env, EventResourceFailed, urn, "failed", err)
			return
		}
		emit(ctx, env, EventResourceApplied, urn, fmt.Sprintf("applied in %v", time.Since(start).Round(time.Millisecond)), nil)
	}()

	d, err := desired(ctx, env, res)
	if err != nil {
		return fmt.Errorf("failed to compute desired state: %w", err)
	}
	wanted.addDesired(urn, d)
	prev := w.record(string(urn))

	arns, err := ensureCloud(ctx, env, d.Cloud)
	if err != nil {
		return err
	}
	if err := applyObjects(ctx, env, d.Objects); err != nil {
		return err
	}

	fps, err := fingerprints(d)
	if err != nil {
		return err
	}
	outputs := maps.Clone(d.Outputs)
	for _, c := range d.Cloud {
		if arn := arns[c.Name]; arn != "" && c.Kind == KindIAMRole {
			if outputs == nil {
				outputs = map[string]string{}
			}
			outputs["roleArn"] = arn
		}
	}

	// stale refs stay recorded until the prune after the last level
	rec := newRecord(res, d, fps, outputs)
	rec.UpdatedAt = time.Now().UTC()
	if prev != nil {
		rec.Objects = append(rec.Objects, staleObjects(prev.Objects, d.Objects)...)
		rec.Cloud = append(rec.Cloud, staleCloud(prev.Cloud, d.Cloud)...)
	}
	if err := w.upsert(ctx, rec); err != nil {
		return err
	}

	if env.Wait {
		if err := waitForDeployments(ctx, env, d.Objects); err != nil {
			return err
		}
	}
	return nil
}

// prune deletes what each applied resource recorded but no longer wants,
// dependents first. Keys another declared resource wants are only dropped
// from the record. A failed prune fails its resource.
func (s *Stack) prune(ctx context.Context, env *Env, w *stateWriter, levels [][]Resource, applied map[URN]bool, wanted *claims, summary *Summary) {
	for i := len(levels) - 1; i >= 0; i-- {
		for _, res := range levels[i] {
			urn := res.URN()
			if !applied[urn] {
				continue
			}
			if err := pruneResource(ctx, env, w, wanted, urn); err != nil {
				summary.demote(urn, err)
				emit(ctx, env, EventResourceFailed, urn, "failed", err)
			}
		}
	}
}

func pruneResource(ctx context.Context, env *Env, w *stateWriter, wanted *claims, urn URN) error {
	rec := w.record(string(urn))
	if rec == nil {
		return nil
	}
	ownObjects, staleObjs := wanted.splitObjects(urn, rec.Objects)
	ownCloud, staleRefs := wanted.splitCloud(urn, rec.Cloud)
	if len(staleObjs) == 0 && len(staleRefs) == 0 {
		return nil
	}

	ctx = log.IntoContext(ctx, log.FromContext(ctx).WithValues("urn", string(urn)))
	if err := deleteObjects(ctx, env, wanted.unclaimedObjects(urn, staleObjs)); err != nil {
		return fmt.Errorf("failed to prune objects: %w", err)
	}
	if err := destroyCloud(ctx, env, wanted.unclaimedCloud(urn, staleRefs)); err != nil {
		return fmt.Errorf("failed to prune cloud resources: %w", err)
	}

	rec.Objects = ownObjects
	rec.Cloud = ownCloud
	rec.UpdatedAt = time.Now().UTC()
	return w.upsert(ctx, *rec)
}
