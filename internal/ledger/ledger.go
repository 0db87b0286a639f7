// Package ledger is the at-most-once-per-day attendance authority.
//
// The Ledger keeps only the current day's set of marked identities. Day
// rollover is implicit: the day key is computed from every call's timestamp
// and a newer key replaces the set. Persistence remains the durable record.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"attendance/internal/model"
)

var (
	// ErrStaleDay is returned for a mark attempt dated before the ledger's
	// current day.
	ErrStaleDay = errors.New("mark attempt for a day that has already rolled over")
	// ErrDivergence tags a mark that the ledger recorded but persistence
	// rejected. The identity will not be re-marked today.
	ErrDivergence = errors.New("ledger/persistence divergence")
)

// Outcome is the result kind of a mark attempt.
type Outcome int

const (
	// Marked means the identity was absent and is now marked.
	Marked Outcome = iota + 1
	// AlreadyMarked means the identity was marked earlier the same day.
	AlreadyMarked
)

func (o Outcome) String() string {
	switch o {
	case Marked:
		return "marked"
	case AlreadyMarked:
		return "already_marked"
	default:
		return "unknown"
	}
}

// MarkOutcome carries the constructed mark when Outcome is Marked.
type MarkOutcome struct {
	Outcome Outcome
	Mark    model.AttendanceMark
}

// Store is an optional shared mark-if-absent backend, used when several
// processes must agree on one mark per identity per day.
type Store interface {
	MarkIfAbsent(ctx context.Context, dayKey, identity string) (bool, error)
	Seed(ctx context.Context, dayKey string, identities []string) error
}

// Ledger is safe for concurrent use by every camera pipeline.
type Ledger struct {
	loc   *time.Location
	store Store

	mu     sync.Mutex
	day    string
	marked map[string]struct{}
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStore adds a shared store consulted after the in-memory set.
func WithStore(s Store) Option {
	return func(l *Ledger) { l.store = s }
}

// New creates an empty ledger deriving day keys in loc.
func New(loc *time.Location, opts ...Option) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	l := &Ledger{loc: loc, marked: make(map[string]struct{})}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DayKey returns the day partition for t.
func (l *Ledger) DayKey(t time.Time) string {
	return model.DayKey(t, l.loc)
}

// TryMark marks identity present for the day of now if it is not already
// marked. The check and insert happen under one lock, so concurrent callers
// for the same identity observe exactly one Marked outcome. The caller must
// persist the returned mark.
func (l *Ledger) TryMark(ctx context.Context, identity string, camera model.CameraID, confidence float64, now time.Time) (MarkOutcome, error) {
	if identity == "" {
		return MarkOutcome{}, errors.New("cannot mark an empty identity")
	}
	day := l.DayKey(now)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rollover(day); err != nil {
		return MarkOutcome{}, err
	}
	if _, ok := l.marked[identity]; ok {
		return MarkOutcome{Outcome: AlreadyMarked}, nil
	}

	if l.store != nil {
		fresh, err := l.store.MarkIfAbsent(ctx, day, identity)
		if err != nil {
			return MarkOutcome{}, fmt.Errorf("shared ledger store: %w", err)
		}
		if !fresh {
			l.marked[identity] = struct{}{}
			return MarkOutcome{Outcome: AlreadyMarked}, nil
		}
	}

	l.marked[identity] = struct{}{}
	return MarkOutcome{
		Outcome: Marked,
		Mark:    model.NewAttendanceMark(identity, camera, confidence, now, day),
	}, nil
}

// LoadToday seeds the set for the day of now, typically from persistence at
// startup, so a restart does not re-mark identities.
func (l *Ledger) LoadToday(ctx context.Context, identities []string, now time.Time) error {
	day := l.DayKey(now)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rollover(day); err != nil {
		return err
	}
	for _, identity := range identities {
		if identity != "" {
			l.marked[identity] = struct{}{}
		}
	}
	if l.store != nil && len(identities) > 0 {
		if err := l.store.Seed(ctx, day, identities); err != nil {
			return fmt.Errorf("shared ledger store: %w", err)
		}
	}
	return nil
}

// IsMarked reports whether identity is marked for the day of now.
func (l *Ledger) IsMarked(identity string, now time.Time) bool {
	day := l.DayKey(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	if day != l.day {
		return false
	}
	_, ok := l.marked[identity]
	return ok
}

// Count returns how many identities are marked for the current day.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.marked)
}

// rollover must be called with mu held.
func (l *Ledger) rollover(day string) error {
	switch {
	case day == l.day:
		return nil
	case l.day != "" && day < l.day:
		return fmt.Errorf("%w: %s is before %s", ErrStaleDay, day, l.day)
	default:
		l.day = day
		l.marked = make(map[string]struct{})
		return nil
	}
}
