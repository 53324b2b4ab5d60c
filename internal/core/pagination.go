package core

// DefaultRowsPerPage is the number of table rows shown per page.
const DefaultRowsPerPage = 7

// TotalPages returns ceil(count/size), never less than 1.
func TotalPages(count, size int) int {
	if size < 1 || count <= 0 {
		return 1
	}
	return (count + size - 1) / size
}

// VisibleSlice returns ledger[(page-1)*size : page*size] clipped to the ledger
// bounds. Out of range pages yield an empty slice. The result aliases ledger.
func VisibleSlice(ledger []Transaction, page, size int) []Transaction {
	if page < 1 || size < 1 {
		return []Transaction{}
	}
	start := (page - 1) * size
	if start >= len(ledger) {
		return []Transaction{}
	}
	end := min(start+size, len(ledger))
	return ledger[start:end]
}

// RowNumber numbers rows by age: the newest transaction (index 0) gets count.
func RowNumber(count, startIndex, offsetInPage int) int {
	return count - (startIndex + offsetInPage)
}

// Pager holds the current page. Size is fixed for the lifetime of the pager.
type Pager struct {
	Current int
	Size    int
}

func NewPager(size int) Pager {
	if size < 1 {
		size = DefaultRowsPerPage
	}
	return Pager{Current: 1, Size: size}
}

// Start is the ledger index of the first row on the current page.
func (p Pager) Start() int {
	return (p.Current - 1) * p.Size
}

func (p Pager) HasPrev() bool {
	return p.Current > 1
}

func (p Pager) HasNext(count int) bool {
	return p.Current < TotalPages(count, p.Size)
}

// Prev moves one page back. It does nothing on the first page.
func (p *Pager) Prev() {
	if p.HasPrev() {
		p.Current--
	}
}

// Next moves one page forward. It does nothing on the last page.
func (p *Pager) Next(count int) {
	if p.HasNext(count) {
		p.Current++
	}
}

// Clamp pulls Current back to the last page when count shrank below it.
func (p *Pager) Clamp(count int) {
	if total := TotalPages(count, p.Size); p.Current > total {
		p.Current = total
	}
	if p.Current < 1 {
		p.Current = 1
	}
}

func (p *Pager) Reset() {
	p.Current = 1
}
