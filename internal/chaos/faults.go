// internal/chaos/faults.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"libralyze/internal/catalog"
	"libralyze/internal/circulation"
	"libralyze/internal/eventstore"
	"libralyze/internal/store"
)

var ErrInjected = errors.New("injected fault")

// FaultyStore wraps a Store and fails or delays calls on demand.
type FaultyStore struct {
	next store.Store

	mu        sync.Mutex
	failSaves int
	latency   time.Duration
	saves     int
	failed    int
}

func NewFaultyStore(next store.Store) *FaultyStore {
	return &FaultyStore{next: next}
}

// FailNextSaves makes the next n saves fail with ErrInjected.
func (f *FaultyStore) FailNextSaves(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSaves = n
}

// SetLatency delays every Load and Save by d.
func (f *FaultyStore) SetLatency(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latency = d
}

// Reset clears all injected faults.
func (f *FaultyStore) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSaves = 0
	f.latency = 0
}

// Stats returns how many saves were attempted and how many were failed on
// purpose.
func (f *FaultyStore) Stats() (saves, failed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves, f.failed
}

func (f *FaultyStore) Load(ctx context.Context) (*catalog.Catalogue, error) {
	if err := f.delay(ctx); err != nil {
		return nil, fmt.Errorf("%w: load: %w", store.ErrStorage, err)
	}
	return f.next.Load(ctx)
}

func (f *FaultyStore) Save(ctx context.Context, c *catalog.Catalogue) error {
	if err := f.delay(ctx); err != nil {
		return fmt.Errorf("%w: save: %w", store.ErrStorage, err)
	}

	f.mu.Lock()
	f.saves++
	inject := f.failSaves > 0
	if inject {
		f.failSaves--
		f.failed++
	}
	f.mu.Unlock()

	if inject {
		return fmt.Errorf("%w: save: %w", store.ErrStorage, ErrInjected)
	}
	return f.next.Save(ctx, c)
}

func (f *FaultyStore) delay(ctx context.Context) error {
	f.mu.Lock()
	d := f.latency
	f.mu.Unlock()
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FaultyJournal wraps a Journal and can take it offline. A nil next journal
// accepts and drops events.
type FaultyJournal struct {
	next circulation.Journal

	mu       sync.Mutex
	down     bool
	appended int
	rejected int
}

func NewFaultyJournal(next circulation.Journal) *FaultyJournal {
	return &FaultyJournal{next: next}
}

// SetDown takes the journal offline or brings it back.
func (j *FaultyJournal) SetDown(down bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.down = down
}

// Stats returns how many appends succeeded and how many were rejected.
func (j *FaultyJournal) Stats() (appended, rejected int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.appended, j.rejected
}

func (j *FaultyJournal) Append(ctx context.Context, aggregateID string, events ...eventstore.Event) error {
	j.mu.Lock()
	if j.down {
		j.rejected++
		j.mu.Unlock()
		return fmt.Errorf("append %s: %w", aggregateID, ErrInjected)
	}
	j.mu.Unlock()

	if j.next != nil {
		if err := j.next.Append(ctx, aggregateID, events...); err != nil {
			return err
		}
	}

	j.mu.Lock()
	j.appended++
	j.mu.Unlock()
	return nil
}
