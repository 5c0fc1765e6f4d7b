// internal/chaos/experiments.go
package chaos

import (
	"context"
	"time"

	"libralyze/internal/catalog"
	"libralyze/internal/circulation"
	"libralyze/internal/store"
)

// Target is the system under experiment: a catalogue and a circulation
// service whose store and journal sit behind fault injectors.
type Target struct {
	Catalogue *catalog.Catalogue
	Service   circulation.Service
	Store     *FaultyStore
	Journal   *FaultyJournal

	backing store.Store
}

// NewTarget builds a circulation service over c that saves through st and
// journals to j, both wrapped in fault injectors. j may be nil.
func NewTarget(c *catalog.Catalogue, st store.Store, j circulation.Journal, opts ...circulation.Option) *Target {
	t := &Target{
		Catalogue: c,
		Store:     NewFaultyStore(st),
		Journal:   NewFaultyJournal(j),
		backing:   st,
	}
	opts = append(opts, circulation.WithJournal(t.Journal))
	t.Service = circulation.NewService(c, t.Store, opts...)
	return t
}

// Drift counts books whose in-memory record differs from the persisted one,
// including books present on only one side.
func (t *Target) Drift(ctx context.Context) (float64, error) {
	persisted, err := t.backing.Load(ctx)
	if err != nil {
		return 0, err
	}

	drift := 0
	inMemory := t.Catalogue.Books()
	for _, b := range inMemory {
		p, err := persisted.Get(b.ISBN)
		if err != nil || p != b {
			drift++
		}
	}
	if extra := persisted.Len() - len(inMemory); extra > 0 {
		drift += extra
	}
	return float64(drift), nil
}

// workload issues one copy of every book in stock and returns it again when
// the issue went through, so a completed run leaves quantities unchanged.
type workload struct {
	failed int
}

func (w *workload) run(ctx context.Context, t *Target) {
	*w = workload{}
	for _, b := range t.Catalogue.Books() {
		if b.Quantity <= 0 {
			continue
		}
		if _, err := t.Service.Issue(ctx, b.ISBN); err != nil {
			w.failed++
			continue
		}
		if _, err := t.Service.Return(ctx, b.ISBN); err != nil {
			w.failed++
		}
	}
}

// RegisterExperiments registers the predefined experiments against t.
func (e *Engine) RegisterExperiments(t *Target) {
	e.RegisterExperiment(SaveFailureExperiment(t, 3))
	e.RegisterExperiment(JournalOutageExperiment(t))
	e.RegisterExperiment(StoreLatencyExperiment(t, 20*time.Millisecond))
}

func driftMetric(t *Target) Metric {
	return Metric{
		Name:      "catalogue_drift",
		Query:     t.Drift,
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

// SaveFailureExperiment fails the next n saves while a workload runs.
func SaveFailureExperiment(t *Target, n int) Experiment {
	var w workload

	return Experiment{
		Name:        "save-failure-injection",
		Hypothesis:  "A failed save never leaves the in-memory catalogue ahead of the store",
		SteadyState: []Metric{driftMetric(t)},
		Method: []Action{
			{
				Type:   "fail-saves",
				Target: "catalogue-store",
				Execute: func(ctx context.Context) error {
					t.Store.FailNextSaves(n)
					return nil
				},
			},
			{
				Type:   "workload",
				Target: "circulation",
				Execute: func(ctx context.Context) error {
					w.run(ctx, t)
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "reset",
				Target: "catalogue-store",
				Execute: func(ctx context.Context) error {
					t.Store.Reset()
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "catalogue_drift",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "In-memory catalogue should match the store after failed saves",
			},
		},
	}
}

// JournalOutageExperiment takes the journal offline while a workload runs.
func JournalOutageExperiment(t *Target) Experiment {
	var w workload

	return Experiment{
		Name:       "journal-outage",
		Hypothesis: "Circulation keeps working while the journal is unavailable",
		SteadyState: []Metric{
			driftMetric(t),
			{
				Name:      "failed_operations",
				Query:     func(context.Context) (float64, error) { return float64(w.failed), nil },
				Threshold: Threshold{Operator: "==", Value: 0},
			},
		},
		Method: []Action{
			{
				Type:   "journal-outage",
				Target: "circulation-journal",
				Execute: func(ctx context.Context) error {
					t.Journal.SetDown(true)
					return nil
				},
			},
			{
				Type:   "workload",
				Target: "circulation",
				Execute: func(ctx context.Context) error {
					w.run(ctx, t)
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "reset",
				Target: "circulation-journal",
				Execute: func(ctx context.Context) error {
					t.Journal.SetDown(false)
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "failed_operations",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "No issue or return should fail because of the journal",
			},
			{
				Metric:    "catalogue_drift",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "Every operation should still be saved",
			},
		},
	}
}

// StoreLatencyExperiment slows every store call down by latency.
func StoreLatencyExperiment(t *Target, latency time.Duration) Experiment {
	var w workload

	return Experiment{
		Name:       "store-latency-injection",
		Hypothesis: "Slow storage delays circulation but never fails it",
		SteadyState: []Metric{
			driftMetric(t),
			{
				Name:      "failed_operations",
				Query:     func(context.Context) (float64, error) { return float64(w.failed), nil },
				Threshold: Threshold{Operator: "==", Value: 0},
			},
		},
		Method: []Action{
			{
				Type:   "latency",
				Target: "catalogue-store",
				Execute: func(ctx context.Context) error {
					t.Store.SetLatency(latency)
					return nil
				},
			},
			{
				Type:   "workload",
				Target: "circulation",
				Execute: func(ctx context.Context) error {
					w.run(ctx, t)
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "reset",
				Target: "catalogue-store",
				Execute: func(ctx context.Context) error {
					t.Store.Reset()
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "failed_operations",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "Slow saves should not fail operations",
			},
		},
	}
}
