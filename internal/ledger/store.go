// Package ledger owns the day's transactions and their persistence.
//
// The ledger is scoped to a single business day: whenever the stored
// last-active date differs from today, Load wipes it and starts over.
package ledger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"laba/internal/core"
	"laba/internal/kv"
	applog "laba/internal/log"
)

// Storage keys.
const (
	KeyTransactions = "transactions"
	KeyLastDate     = "lastTransactionDate"
)

// State is the outcome of Load.
type State int

const (
	// Fresh means the stored day is today and the ledger was restored.
	Fresh State = iota
	// Reset means the stored day was stale and the ledger was wiped.
	Reset
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

// Store holds the in-memory ledger, newest first. It is not safe for
// concurrent use; callers serialize access.
type Store struct {
	kv     kv.Store
	now    func() time.Time
	loc    *time.Location
	logger *applog.Logger

	items  []core.Transaction
	day    core.Date
	loaded bool
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the time zone the day boundary is computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l *applog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithComponent(applog.ComponentLedger)
		}
	}
}

func New(store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:     store,
		now:    time.Now,
		loc:    time.UTC,
		logger: applog.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current calendar day in the store's time zone.
func (s *Store) Today() core.Date {
	return core.DateOf(s.now(), s.loc)
}

// Now is the current instant in UTC at millisecond precision, the form
// transaction dates are stored in.
func (s *Store) Now() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Location is the time zone the day boundary is computed in.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Day is the business day the in-memory ledger belongs to.
func (s *Store) Day() core.Date {
	return s.day
}

// Load reads the persisted ledger. A stale or missing date wipes the stored
// transactions and advances the date to today in one write.
func (s *Store) Load(ctx context.Context) (State, error) {
	today := s.Today()

	values, err := s.kv.Read(ctx, KeyLastDate, KeyTransactions)
	if err != nil {
		return Fresh, fmt.Errorf("%w: read ledger: %w", core.ErrStorageUnavailable, err)
	}

	if values[KeyLastDate] != today.String() {
		b := kv.NewBatch().Put(KeyLastDate, today.String()).Remove(KeyTransactions)
		if err := s.kv.Write(ctx, b); err != nil {
			return Reset, fmt.Errorf("%w: reset ledger: %w", core.ErrStorageUnavailable, err)
		}
		s.items = nil
		s.day = today
		s.loaded = true
		s.logger.InfoContext(ctx, "Ledger reset for new day",
			applog.FieldOperation, applog.OpReset,
			"previous_day", values[KeyLastDate],
			applog.FieldDay, today.String())
		return Reset, nil
	}

	var items []core.Transaction
	if raw, ok := values[KeyTransactions]; ok && raw != "" {
		items, err = decode(raw)
		if err != nil {
			s.items = nil
			s.loaded = false
			return Fresh, fmt.Errorf("load ledger: %w", err)
		}
	}

	s.items = items
	s.day = today
	s.loaded = true
	s.logger.InfoContext(ctx, "Ledger loaded",
		applog.FieldOperation, applog.OpLoad,
		applog.FieldDay, today.String(),
		applog.FieldCount, len(items))
	return Fresh, nil
}

// Rollover re-runs Load when the store has never loaded or the clock has
// moved past the loaded day. It reports whether Load ran.
func (s *Store) Rollover(ctx context.Context) (bool, State, error) {
	if s.loaded && s.Today().Equal(s.day) {
		return false, Fresh, nil
	}
	st, err := s.Load(ctx)
	return true, st, err
}

// Save writes the full ledger and today's date in one batch.
func (s *Store) Save(ctx context.Context) error {
	return s.persist(ctx, s.items)
}

// Transactions returns a copy of the ledger, newest first.
func (s *Store) Transactions() []core.Transaction {
	return slices.Clone(s.items)
}

func (s *Store) Len() int {
	return len(s.items)
}

// At returns the transaction at index.
func (s *Store) At(index int) (core.Transaction, error) {
	if index < 0 || index >= len(s.items) {
		return core.Transaction{}, fmt.Errorf("%w: %d (ledger has %d)", core.ErrOutOfRange, index, len(s.items))
	}
	return s.items[index], nil
}

// Insert puts t at the head of the ledger and persists. The date is kept
// in the stored form: UTC, millisecond precision.
func (s *Store) Insert(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	t.Date = t.Date.UTC().Truncate(time.Millisecond)
	next := make([]core.Transaction, 0, len(s.items)+1)
	next = append(next, t)
	next = append(next, s.items...)
	return s.commit(ctx, next)
}

// Update replaces the editable fields at index, keeping its date, and persists.
func (s *Store) Update(ctx context.Context, index int, f core.TransactionFields) error {
	cur, err := s.At(index)
	if err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	next := slices.Clone(s.items)
	next[index] = cur.WithFields(f)
	return s.commit(ctx, next)
}

// Remove deletes the transaction at index and persists.
func (s *Store) Remove(ctx context.Context, index int) (core.Transaction, error) {
	removed, err := s.At(index)
	if err != nil {
		return core.Transaction{}, err
	}
	next := slices.Delete(slices.Clone(s.items), index, index+1)
	if err := s.commit(ctx, next); err != nil {
		return core.Transaction{}, err
	}
	return removed, nil
}

// commit persists next and only then makes it the in-memory ledger.
func (s *Store) commit(ctx context.Context, next []core.Transaction) error {
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.items = next
	return nil
}

func (s *Store) persist(ctx context.Context, items []core.Transaction) error {
	raw, err := encode(items)
	if err != nil {
		return err
	}
	today := s.Today()
	b := kv.NewBatch().Put(KeyTransactions, raw).Put(KeyLastDate, today.String())
	if err := s.kv.Write(ctx, b); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save ledger",
			applog.FieldOperation, applog.OpSave,
			applog.FieldError, err)
		return fmt.Errorf("%w: save ledger: %w", core.ErrStorageUnavailable, err)
	}
	s.logger.DebugContext(ctx, "Ledger saved",
		applog.FieldOperation, applog.OpSave,
		applog.FieldCount, len(items))
	return nil
}
