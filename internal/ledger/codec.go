package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"laba/internal/core"
)

// persisted mirrors one element of the stored JSON array. Pointers let
// decode tell a missing field from a zero value.
type persisted struct {
	ProductName  *string    `json:"productName"`
	CostPrice    *int64     `json:"costPrice"`
	SellPrice    *int64     `json:"sellPrice"`
	CustomerName *string    `json:"customerName"`
	Date         *time.Time `json:"date"`
}

// dateLayout matches JavaScript's Date.prototype.toISOString.
const dateLayout = "2006-01-02T15:04:05.000Z"

// stored is the written form of a transaction. Dates are always UTC with
// three fractional digits.
type stored struct {
	ProductName  string `json:"productName"`
	CostPrice    int64  `json:"costPrice"`
	SellPrice    int64  `json:"sellPrice"`
	CustomerName string `json:"customerName"`
	Date         string `json:"date"`
}

func encode(ts []core.Transaction) (string, error) {
	out := make([]stored, len(ts))
	for i, t := range ts {
		out[i] = stored{
			ProductName:  t.ProductName,
			CostPrice:    t.CostPrice,
			SellPrice:    t.SellPrice,
			CustomerName: t.CustomerName,
			Date:         t.Date.UTC().Format(dateLayout),
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode ledger: %w", err)
	}
	return string(b), nil
}

// decode parses the stored array. Any syntax error, missing field or negative
// price is reported as core.ErrMalformedState.
func decode(raw string) ([]core.Transaction, error) {
	var items []persisted
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedState, err)
	}

	out := make([]core.Transaction, 0, len(items))
	for i, p := range items {
		if p.ProductName == nil || p.CostPrice == nil || p.SellPrice == nil || p.CustomerName == nil || p.Date == nil {
			return nil, fmt.Errorf("%w: transaction %d is missing a field", core.ErrMalformedState, i)
		}
		t := core.Transaction{
			ProductName:  *p.ProductName,
			CostPrice:    *p.CostPrice,
			SellPrice:    *p.SellPrice,
			CustomerName: *p.CustomerName,
			Date:         *p.Date,
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("%w: transaction %d: %v", core.ErrMalformedState, i, err)
		}
		out = append(out, t)
	}
	return out, nil
}
