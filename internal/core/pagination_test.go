package core

import (
	"fmt"
	"testing"
	"time"
)

func makeLedger(n int) []Transaction {
	out := make([]Transaction, n)
	for i := range out {
		out[i] = Transaction{
			ProductName: fmt.Sprintf("p%d", i),
			CostPrice:   int64(i) * 100,
			SellPrice:   int64(i) * 150,
			Date:        time.Now(),
		}
	}
	return out
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		count, size, want int
	}{
		{0, 7, 1},
		{1, 7, 1},
		{7, 7, 1},
		{8, 7, 2},
		{14, 7, 2},
		{15, 7, 3},
		{5, 0, 1},
	}
	for _, tc := range cases {
		if got := TotalPages(tc.count, tc.size); got != tc.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tc.count, tc.size, got, tc.want)
		}
	}
}

func TestVisibleSlice(t *testing.T) {
	ledger := makeLedger(16)
	cases := []struct {
		page, size int
		first      string
		n          int
	}{
		{1, 7, "p0", 7},
		{2, 7, "p7", 7},
		{3, 7, "p14", 2},
		{4, 7, "", 0},
		{0, 7, "", 0},
		{-1, 7, "", 0},
		{1, 0, "", 0},
		{1, 100, "p0", 16},
	}
	for _, tc := range cases {
		got := VisibleSlice(ledger, tc.page, tc.size)
		if len(got) != tc.n {
			t.Fatalf("page %d size %d: got %d rows, want %d", tc.page, tc.size, len(got), tc.n)
		}
		if tc.n > 0 && got[0].ProductName != tc.first {
			t.Fatalf("page %d size %d: first row %s, want %s", tc.page, tc.size, got[0].ProductName, tc.first)
		}
		if got == nil {
			t.Fatalf("page %d size %d: nil slice", tc.page, tc.size)
		}
	}
}

func TestVisibleSliceBounds(t *testing.T) {
	for count := 0; count < 30; count++ {
		ledger := makeLedger(count)
		for size := 1; size <= 9; size++ {
			for page := 1; page <= TotalPages(count, size)+1; page++ {
				got := VisibleSlice(ledger, page, size)
				if len(got) > size {
					t.Fatalf("count=%d size=%d page=%d: %d rows", count, size, page, len(got))
				}
				start := (page - 1) * size
				for i, tr := range got {
					if tr.ProductName != ledger[start+i].ProductName {
						t.Fatalf("count=%d size=%d page=%d: row %d mismatch", count, size, page, i)
					}
				}
			}
		}
	}
}

func TestEmptyLedgerScenario(t *testing.T) {
	var ledger []Transaction
	if got := TotalPages(len(ledger), 7); got != 1 {
		t.Fatalf("totalPages = %d", got)
	}
	if got := VisibleSlice(ledger, 1, 7); len(got) != 0 {
		t.Fatalf("visibleSlice = %v", got)
	}
	if got := TotalProfit(ledger); got != 0 {
		t.Fatalf("totalProfit = %d", got)
	}
}

func TestRowNumber(t *testing.T) {
	// 10 rows, size 7: page 1 shows 10..4, page 2 shows 3..1.
	if got := RowNumber(10, 0, 0); got != 10 {
		t.Fatalf("newest = %d", got)
	}
	if got := RowNumber(10, 0, 6); got != 4 {
		t.Fatalf("last on page 1 = %d", got)
	}
	if got := RowNumber(10, 7, 2); got != 1 {
		t.Fatalf("oldest = %d", got)
	}
}

func TestPagerNavigation(t *testing.T) {
	p := NewPager(7)
	p.Prev()
	if p.Current != 1 {
		t.Fatalf("prev on first page moved to %d", p.Current)
	}
	p.Next(15)
	p.Next(15)
	if p.Current != 3 {
		t.Fatalf("expected page 3, got %d", p.Current)
	}
	p.Next(15)
	if p.Current != 3 {
		t.Fatalf("next on last page moved to %d", p.Current)
	}
	if p.HasNext(15) || !p.HasPrev() {
		t.Fatalf("bad flags on last page")
	}
	if p.Start() != 14 {
		t.Fatalf("start = %d", p.Start())
	}
	p.Prev()
	if p.Current != 2 {
		t.Fatalf("expected page 2, got %d", p.Current)
	}
	p.Reset()
	if p.Current != 1 {
		t.Fatalf("reset left page %d", p.Current)
	}
}

func TestPagerClamp(t *testing.T) {
	p := Pager{Current: 3, Size: 7}
	p.Clamp(8)
	if p.Current != 2 {
		t.Fatalf("clamp to 2, got %d", p.Current)
	}
	p.Clamp(0)
	if p.Current != 1 {
		t.Fatalf("clamp on empty ledger, got %d", p.Current)
	}
	p = Pager{Current: 1, Size: 7}
	p.Clamp(100)
	if p.Current != 1 {
		t.Fatalf("clamp moved a valid page to %d", p.Current)
	}
	if NewPager(0).Size != DefaultRowsPerPage {
		t.Fatalf("NewPager(0) should fall back to the default size")
	}
}
