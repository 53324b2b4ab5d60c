package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"laba/internal/core"
	"laba/internal/kv"
	"laba/internal/kv/memory"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

// flakyKV wraps a memory store and fails on demand.
type flakyKV struct {
	*memory.Store
	failRead, failWrite bool
}

func (f *flakyKV) Read(ctx context.Context, keys ...string) (map[string]string, error) {
	if f.failRead {
		return nil, errors.New("storage disabled")
	}
	return f.Store.Read(ctx, keys...)
}

func (f *flakyKV) Write(ctx context.Context, b kv.Batch) error {
	if f.failWrite {
		return errors.New("quota exceeded")
	}
	return f.Store.Write(ctx, b)
}

func at(day string, hour int) time.Time {
	d, err := core.ParseDate(day)
	if err != nil {
		panic(err)
	}
	return d.Add(time.Duration(hour) * time.Hour)
}

func tx(name string, cost, sell int64, when time.Time) core.Transaction {
	return core.Transaction{ProductName: name, CostPrice: cost, SellPrice: sell, CustomerName: "c-" + name, Date: when}
}

func TestLoadResetsOnNewDay(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewWithData(map[string]string{
		KeyLastDate:     "2023-01-01",
		KeyTransactions: `[{"productName":"X","costPrice":1000,"sellPrice":1500,"customerName":"A","date":"2023-01-01T10:00:00.000Z"}]`,
	})
	c := &clock{t: at("2023-01-02", 9)}
	s := New(mem, WithClock(c.now))

	st, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st != Reset {
		t.Fatalf("expected reset, got %s", st)
	}
	if s.Len() != 0 {
		t.Fatalf("ledger not cleared: %d", s.Len())
	}
	snap := mem.Snapshot()
	if _, ok := snap[KeyTransactions]; ok {
		t.Fatalf("persisted transactions not discarded: %v", snap)
	}
	if snap[KeyLastDate] != "2023-01-02" {
		t.Fatalf("persisted date = %q", snap[KeyLastDate])
	}
	if s.Day().String() != "2023-01-02" {
		t.Fatalf("day = %s", s.Day())
	}
}

func TestLoadFirstRunIsReset(t *testing.T) {
	mem := memory.New()
	s := New(mem, WithClock((&clock{t: at("2023-01-02", 1)}).now))
	st, err := s.Load(context.Background())
	if err != nil || st != Reset {
		t.Fatalf("expected reset on empty storage, got %s err=%v", st, err)
	}
	if mem.Snapshot()[KeyLastDate] != "2023-01-02" {
		t.Fatalf("date not written")
	}
}

func TestLoadRestoresSameDay(t *testing.T) {
	ctx := context.Background()
	raw := `[{"productName":"Y","costPrice":200,"sellPrice":100,"customerName":"B","date":"2023-01-02T08:00:00.000Z"},` +
		`{"productName":"X","costPrice":1000,"sellPrice":1500,"customerName":"A","date":"2023-01-02T07:00:00Z"}]`
	mem := memory.NewWithData(map[string]string{KeyLastDate: "2023-01-02", KeyTransactions: raw})
	s := New(mem, WithClock((&clock{t: at("2023-01-02", 12)}).now))

	st, err := s.Load(ctx)
	if err != nil || st != Fresh {
		t.Fatalf("expected fresh, got %s err=%v", st, err)
	}
	got := s.Transactions()
	if len(got) != 2 || got[0].ProductName != "Y" || got[1].ProductName != "X" {
		t.Fatalf("unexpected ledger: %+v", got)
	}
	if want := time.Date(2023, 1, 2, 8, 0, 0, 0, time.UTC); !got[0].Date.Equal(want) {
		t.Fatalf("date not restored: %v", got[0].Date)
	}
	if core.TotalProfit(got) != 400 {
		t.Fatalf("total profit = %d", core.TotalProfit(got))
	}
}

func TestLoadSameDayWithoutTransactions(t *testing.T) {
	mem := memory.NewWithData(map[string]string{KeyLastDate: "2023-01-02"})
	s := New(mem, WithClock((&clock{t: at("2023-01-02", 12)}).now))
	st, err := s.Load(context.Background())
	if err != nil || st != Fresh || s.Len() != 0 {
		t.Fatalf("expected empty fresh ledger, got %s len=%d err=%v", st, s.Len(), err)
	}
}

func TestLoadMalformedFailsFast(t *testing.T) {
	cases := map[string]string{
		"syntax":        `[{"productName":`,
		"not an array":  `{"productName":"X"}`,
		"missing date":  `[{"productName":"X","costPrice":1,"sellPrice":2,"customerName":"A"}]`,
		"missing price": `[{"productName":"X","sellPrice":2,"customerName":"A","date":"2023-01-02T00:00:00Z"}]`,
		"bad date":      `[{"productName":"X","costPrice":1,"sellPrice":2,"customerName":"A","date":"yesterday"}]`,
		"negative":      `[{"productName":"X","costPrice":-1,"sellPrice":2,"customerName":"A","date":"2023-01-02T00:00:00Z"}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			mem := memory.NewWithData(map[string]string{KeyLastDate: "2023-01-02", KeyTransactions: raw})
			s := New(mem, WithClock((&clock{t: at("2023-01-02", 12)}).now))
			_, err := s.Load(context.Background())
			if !errors.Is(err, core.ErrMalformedState) {
				t.Fatalf("expected ErrMalformedState, got %v", err)
			}
			if s.Len() != 0 {
				t.Fatalf("ledger should stay empty")
			}
			if mem.Snapshot()[KeyTransactions] != raw {
				t.Fatalf("malformed data must be left untouched")
			}
		})
	}
}

func TestLoadStorageUnavailable(t *testing.T) {
	f := &flakyKV{Store: memory.New(), failRead: true}
	s := New(f)
	if _, err := s.Load(context.Background()); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	f.failRead, f.failWrite = false, true
	if _, err := s.Load(context.Background()); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable on reset write, got %v", err)
	}
}

func TestMutationsPersist(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	c := &clock{t: at("2023-01-02", 9)}
	s := New(mem, WithClock(c.now))
	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.Insert(ctx, tx(fmt.Sprintf("p%d", i), 100, 150, c.t)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if got := s.Transactions(); got[0].ProductName != "p2" || got[2].ProductName != "p0" {
		t.Fatalf("insert order wrong: %+v", got)
	}

	orig, _ := s.At(1)
	if err := s.Update(ctx, 1, core.TransactionFields{ProductName: "edited", CostPrice: 10, SellPrice: 5, CustomerName: "Z"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.At(1)
	if got.ProductName != "edited" || got.CustomerName != "Z" || !got.Date.Equal(orig.Date) {
		t.Fatalf("update wrong: %+v", got)
	}

	removed, err := s.Remove(ctx, 0)
	if err != nil || removed.ProductName != "p2" {
		t.Fatalf("remove: %+v err=%v", removed, err)
	}

	// A second store over the same storage sees the same ledger.
	reloaded := New(mem, WithClock(c.now))
	if st, err := reloaded.Load(ctx); err != nil || st != Fresh {
		t.Fatalf("reload: %s %v", st, err)
	}
	want := s.Transactions()
	have := reloaded.Transactions()
	if len(have) != len(want) {
		t.Fatalf("reloaded %d rows, want %d", len(have), len(want))
	}
	for i := range want {
		if have[i].ProductName != want[i].ProductName || !have[i].Date.Equal(want[i].Date) {
			t.Fatalf("row %d differs: %+v vs %+v", i, have[i], want[i])
		}
	}
	if !strings.Contains(mem.Snapshot()[KeyTransactions], `"productName":"edited"`) {
		t.Fatalf("unexpected stored json: %s", mem.Snapshot()[KeyTransactions])
	}
}

func TestOutOfRange(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New())
	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Insert(ctx, tx("a", 1, 2, time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}
	for _, idx := range []int{-1, 1, 5} {
		if err := s.Update(ctx, idx, core.TransactionFields{}); !errors.Is(err, core.ErrOutOfRange) {
			t.Fatalf("update %d: expected ErrOutOfRange, got %v", idx, err)
		}
		if _, err := s.Remove(ctx, idx); !errors.Is(err, core.ErrOutOfRange) {
			t.Fatalf("remove %d: expected ErrOutOfRange, got %v", idx, err)
		}
	}
	if s.Len() != 1 {
		t.Fatalf("out of range calls mutated ledger")
	}
}

func TestFailedWriteKeepsMemory(t *testing.T) {
	ctx := context.Background()
	f := &flakyKV{Store: memory.New()}
	s := New(f)
	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Insert(ctx, tx("a", 1, 2, time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}

	f.failWrite = true
	if err := s.Insert(ctx, tx("b", 1, 2, time.Now())); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if err := s.Update(ctx, 0, core.TransactionFields{ProductName: "z"}); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if _, err := s.Remove(ctx, 0); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if err := s.Save(ctx); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	got := s.Transactions()
	if len(got) != 1 || got[0].ProductName != "a" {
		t.Fatalf("memory diverged from storage: %+v", got)
	}
}

func TestInsertRejectsInvalid(t *testing.T) {
	s := New(memory.New())
	if err := s.Insert(context.Background(), core.Transaction{CostPrice: -5, Date: time.Now()}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestRollover(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	c := &clock{t: at("2023-01-02", 22)}
	s := New(mem, WithClock(c.now))

	ran, st, err := s.Rollover(ctx)
	if err != nil || !ran || st != Reset {
		t.Fatalf("first rollover should load: ran=%v st=%s err=%v", ran, st, err)
	}
	if err := s.Insert(ctx, tx("late", 1, 2, c.t)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	c.t = at("2023-01-02", 23)
	if ran, _, _ := s.Rollover(ctx); ran {
		t.Fatalf("rollover ran within the same day")
	}
	if s.Len() != 1 {
		t.Fatalf("same-day rollover changed ledger")
	}

	c.t = at("2023-01-03", 1)
	ran, st, err = s.Rollover(ctx)
	if err != nil || !ran || st != Reset {
		t.Fatalf("midnight rollover: ran=%v st=%s err=%v", ran, st, err)
	}
	if s.Len() != 0 || mem.Snapshot()[KeyLastDate] != "2023-01-03" {
		t.Fatalf("ledger not wiped after midnight: len=%d snap=%v", s.Len(), mem.Snapshot())
	}
}

func TestDayBoundaryUsesLocation(t *testing.T) {
	wib := time.FixedZone("WIB", 7*60*60)
	// 18:00 UTC on Jan 1 is already Jan 2 in Jakarta.
	c := &clock{t: at("2023-01-01", 18)}
	s := New(memory.New(), WithClock(c.now), WithLocation(wib))
	if s.Today().String() != "2023-01-02" {
		t.Fatalf("today = %s", s.Today())
	}
}

func TestTransactionsReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New())
	s.Load(ctx)
	s.Insert(ctx, tx("a", 1, 2, time.Now()))
	got := s.Transactions()
	got[0].ProductName = "mutated"
	if first, _ := s.At(0); first.ProductName != "a" {
		t.Fatalf("Transactions aliases the ledger")
	}
}

func TestStateString(t *testing.T) {
	if Fresh.String() != "fresh" || Reset.String() != "reset" || State(9).String() != "unknown" {
		t.Fatalf("unexpected state names")
	}
}

func TestStoredDateShape(t *testing.T) {
	ctx := context.Background()
	wib := time.FixedZone("WIB", 7*60*60)
	c := &clock{t: time.Date(2023, 1, 2, 10, 4, 5, 678123456, wib)}
	mem := memory.New()
	s := New(mem, WithClock(c.now), WithLocation(wib))
	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := s.Now(); got.Location() != time.UTC || got.Nanosecond() != 678000000 {
		t.Fatalf("Now() = %v", got)
	}
	if err := s.Insert(ctx, tx("kopi", 1000, 1500, c.t)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	want := `[{"productName":"kopi","costPrice":1000,"sellPrice":1500,"customerName":"c-kopi","date":"2023-01-02T03:04:05.678Z"}]`
	if got := mem.Snapshot()[KeyTransactions]; got != want {
		t.Fatalf("stored json\n got %s\nwant %s", got, want)
	}
	if got := mem.Snapshot()[KeyLastDate]; got != "2023-01-02" {
		t.Fatalf("stored day = %q", got)
	}

	// Memory holds exactly what a reload reads back.
	first, _ := s.At(0)
	reloaded := New(mem, WithClock(c.now), WithLocation(wib))
	if _, err := reloaded.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	back, _ := reloaded.At(0)
	if !back.Date.Equal(first.Date) || first.Date.Location() != time.UTC {
		t.Fatalf("date drifted across reload: %v vs %v", back.Date, first.Date)
	}
}

func TestEncodeEmpty(t *testing.T) {
	for _, in := range [][]core.Transaction{nil, {}} {
		if got, err := encode(in); err != nil || got != "[]" {
			t.Fatalf("encode(%v) = %q, %v", in, got, err)
		}
	}
}
