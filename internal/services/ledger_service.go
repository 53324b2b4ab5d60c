package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"laba/internal/amqp"
	"laba/internal/core"
	"laba/internal/ledger"
	applog "laba/internal/log"
)

// EventPublisher receives ledger change events. amqp.Client implements it.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error
}

// Input carries a form submission as typed by the user. Prices go through
// core.ParseTyped; names are kept literally.
type Input struct {
	ProductName  string
	CostPrice    string
	SellPrice    string
	CustomerName string
}

func (in Input) fields() core.TransactionFields {
	return core.TransactionFields{
		ProductName:  in.ProductName,
		CostPrice:    core.ParseTyped(in.CostPrice),
		SellPrice:    core.ParseTyped(in.SellPrice),
		CustomerName: in.CustomerName,
	}
}

// Row is one rendered table row.
type Row struct {
	Index       int // position in the full ledger, used to address edit/delete
	Number      int // display number, newest = highest
	Transaction core.Transaction
	When        time.Time // Transaction.Date in the ledger's time zone
	Profit      int64
}

// View is everything the UI needs to render the current page.
type View struct {
	Day         core.Date
	Rows        []Row
	Page        int
	TotalPages  int
	HasPrev     bool
	HasNext     bool
	Summary     core.Summary
	RowsPerPage int
}

// publishTimeout bounds a single event publish.
const publishTimeout = 5 * time.Second

// LedgerService applies user actions to the ledger. Each action holds mu for
// its whole duration, so actions never interleave. Change events are queued
// under mu and published after it is released.
type LedgerService struct {
	mu        sync.Mutex
	store     *ledger.Store
	pager     core.Pager
	publisher EventPublisher
	pending   []*amqp.LedgerEvent
	logger    *applog.Logger

	// pubMu keeps events in order across concurrent actions. It is always
	// taken before mu.
	pubMu sync.Mutex
}

func NewLedgerService(store *ledger.Store, publisher EventPublisher, rowsPerPage int, logger *applog.Logger) *LedgerService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &LedgerService{
		store:     store,
		pager:     core.NewPager(rowsPerPage),
		publisher: publisher,
		logger:    logger.WithComponent(applog.ComponentLedger),
	}
}

// Load restores the ledger from storage, applying the daily reset.
func (s *LedgerService) Load(ctx context.Context) (ledger.State, error) {
	st, err := s.load(ctx)
	s.flush(ctx)
	return st, err
}

func (s *LedgerService) load(ctx context.Context) (ledger.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.store.Load(ctx)
	if err != nil {
		return st, err
	}
	s.afterLoad(st)
	return st, nil
}

// Refresh runs the day-boundary check. Adapters call it before rendering.
func (s *LedgerService) Refresh(ctx context.Context) error {
	err := s.refresh(ctx)
	s.flush(ctx)
	return err
}

func (s *LedgerService) refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rolloverLocked(ctx)
}

func (s *LedgerService) rolloverLocked(ctx context.Context) error {
	ran, st, err := s.store.Rollover(ctx)
	if err != nil {
		return err
	}
	if ran {
		s.afterLoad(st)
	}
	return nil
}

func (s *LedgerService) afterLoad(st ledger.State) {
	s.pager.Clamp(s.store.Len())
	if st == ledger.Reset {
		s.pager.Reset()
		s.queue(amqp.EventLedgerReset, -1, nil)
	}
}

// Add records a new transaction dated now at the head of the ledger and
// jumps back to page 1.
func (s *LedgerService) Add(ctx context.Context, in Input) (core.Transaction, error) {
	t, err := s.add(ctx, in)
	s.flush(ctx)
	return t, err
}

func (s *LedgerService) add(ctx context.Context, in Input) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rolloverLocked(ctx); err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{Date: s.store.Now()}.WithFields(in.fields())
	if err := s.store.Insert(ctx, t); err != nil {
		s.logFailure(ctx, applog.OpCreate, 0, err)
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}
	s.pager.Reset()

	s.logChange(ctx, applog.OpCreate, 0, t)
	s.queue(amqp.EventTransactionAdded, 0, &t)
	return t, nil
}

// Update replaces the editable fields of the transaction at index.
func (s *LedgerService) Update(ctx context.Context, index int, in Input) error {
	err := s.update(ctx, index, in)
	s.flush(ctx)
	return err
}

func (s *LedgerService) update(ctx context.Context, index int, in Input) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rolloverLocked(ctx); err != nil {
		return err
	}

	if err := s.store.Update(ctx, index, in.fields()); err != nil {
		s.logFailure(ctx, applog.OpUpdate, index, err)
		return fmt.Errorf("update transaction: %w", err)
	}

	t, _ := s.store.At(index)
	s.logChange(ctx, applog.OpUpdate, index, t)
	s.queue(amqp.EventTransactionUpdated, index, &t)
	return nil
}

// Delete removes the transaction at index. Confirmation is the caller's job.
func (s *LedgerService) Delete(ctx context.Context, index int) error {
	err := s.remove(ctx, index)
	s.flush(ctx)
	return err
}

func (s *LedgerService) remove(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rolloverLocked(ctx); err != nil {
		return err
	}

	removed, err := s.store.Remove(ctx, index)
	if err != nil {
		s.logFailure(ctx, applog.OpDelete, index, err)
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.pager.Clamp(s.store.Len())

	s.logChange(ctx, applog.OpDelete, index, removed)
	s.queue(amqp.EventTransactionDeleted, index, &removed)
	return nil
}

// Transaction returns the transaction at index, for prefilling an edit form.
func (s *LedgerService) Transaction(index int) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.At(index)
}

// Location is the ledger's time zone, for displaying transaction dates.
func (s *LedgerService) Location() *time.Location {
	return s.store.Location()
}

func (s *LedgerService) PrevPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pager.Prev()
	s.logger.Debug("Page changed", applog.FieldPage, s.pager.Current)
}

func (s *LedgerService) NextPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pager.Next(s.store.Len())
	s.logger.Debug("Page changed", applog.FieldPage, s.pager.Current)
}

// View derives the current page and the whole-ledger totals.
func (s *LedgerService) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.store.Transactions()
	count := len(all)
	start := s.pager.Start()
	visible := core.VisibleSlice(all, s.pager.Current, s.pager.Size)

	rows := make([]Row, len(visible))
	for i, t := range visible {
		rows[i] = Row{
			Index:       start + i,
			Number:      core.RowNumber(count, start, i),
			Transaction: t,
			When:        t.Date.In(s.store.Location()),
			Profit:      core.ProfitOf(t),
		}
	}

	return View{
		Day:         s.store.Day(),
		Rows:        rows,
		Page:        s.pager.Current,
		TotalPages:  core.TotalPages(count, s.pager.Size),
		HasPrev:     s.pager.HasPrev(),
		HasNext:     s.pager.HasNext(count),
		Summary:     core.Summarize(all),
		RowsPerPage: s.pager.Size,
	}
}

func (s *LedgerService) logChange(ctx context.Context, op string, index int, t core.Transaction) {
	all := s.store.Transactions()
	fields := applog.NewFields().
		WithOperation(op).
		WithTransaction(index, t.ProductName, t.CustomerName, t.CostPrice, t.SellPrice).
		WithLedger(len(all), core.TotalProfit(all))
	fields[applog.FieldProfit] = core.ProfitOf(t)
	s.logger.InfoContext(ctx, "Ledger changed", fields.ToSlice()...)
}

func (s *LedgerService) logFailure(ctx context.Context, op string, index int, err error) {
	fields := applog.NewFields().WithOperation(op).WithError(err)
	fields[applog.FieldIndex] = index
	if errors.Is(err, core.ErrOutOfRange) {
		s.logger.WarnContext(ctx, "Ledger change rejected", fields.ToSlice()...)
		return
	}
	s.logger.ErrorContext(ctx, "Ledger change failed", fields.ToSlice()...)
}

// queue records an event for the next flush. Callers hold mu.
func (s *LedgerService) queue(typ amqp.EventType, index int, t *core.Transaction) {
	if s.publisher == nil {
		return
	}
	all := s.store.Transactions()
	s.pending = append(s.pending, amqp.NewLedgerEvent(typ, index, t, len(all), core.TotalProfit(all), s.store.Day()))
}

// flush publishes queued events without holding mu, so a slow broker never
// blocks readers. Publishing is best effort: the ledger is already saved, so
// failures are only logged.
func (s *LedgerService) flush(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	for {
		// Whoever holds pubMu drains events queued by other callers too.
		if !s.pubMu.TryLock() {
			return
		}
		s.drain(ctx)
		s.pubMu.Unlock()

		s.mu.Lock()
		more := len(s.pending) > 0
		s.mu.Unlock()
		if !more {
			return
		}
	}
}

func (s *LedgerService) drain(ctx context.Context) {
	for {
		s.mu.Lock()
		events := s.pending
		s.pending = nil
		s.mu.Unlock()
		if len(events) == 0 {
			return
		}

		for _, e := range events {
			pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
			err := s.publisher.PublishLedgerEvent(pctx, e)
			cancel()
			if err != nil {
				s.logger.ErrorContext(ctx, "Failed to publish ledger event",
					applog.FieldOperation, applog.OpPublish,
					"type", e.Type,
					applog.FieldError, err)
			}
		}
	}
}
