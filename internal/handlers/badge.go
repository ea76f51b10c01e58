package handlers

import "backend/internal/models"

// badgeLevel classifies the loyalty tier from real monthly spend. The
// boundaries are exclusive: exactly 150000 is still Silver, exactly 50000 is
// still Bronze.
func badgeLevel(monthlySpend float64) string {
	switch {
	case monthlySpend > 150000:
		return "Gold"
	case monthlySpend > 50000:
		return "Silver"
	default:
		return "Bronze"
	}
}

// spendFromTransactions recomputes monthly spend and top-up frequency from
// order history. Profile views use this instead of the stored behavior
// counters so displayed numbers always match the transaction table.
func spendFromTransactions(transactions []models.Transaction) (float64, int) {
	total := 0.0
	for _, t := range transactions {
		total += float64(t.Amount)
	}
	return total, len(transactions)
}
