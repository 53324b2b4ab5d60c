package core

// Summary aggregates a whole ledger, independent of pagination.
type Summary struct {
	Count       int
	TotalCost   int64
	TotalSell   int64
	TotalProfit int64
}

// ProfitOf returns sell minus cost. It may be negative.
func ProfitOf(t Transaction) int64 {
	return t.SellPrice - t.CostPrice
}

// TotalProfit sums ProfitOf over every transaction in ledger.
func TotalProfit(ledger []Transaction) int64 {
	var total int64
	for _, t := range ledger {
		total += ProfitOf(t)
	}
	return total
}

func Summarize(ledger []Transaction) Summary {
	s := Summary{Count: len(ledger)}
	for _, t := range ledger {
		s.TotalCost += t.CostPrice
		s.TotalSell += t.SellPrice
	}
	s.TotalProfit = TotalProfit(ledger)
	return s
}
