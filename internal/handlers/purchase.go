package handlers

import (
	"math"
	"regexp"
	"strconv"

	"backend/internal/models"
)

var quotaPattern = regexp.MustCompile(`(?i)(\d+)\s*GB`)

// parseQuotaGB extracts the data quota advertised in a product name, e.g.
// "Internet 15GB". The second return value reports whether a quota token was
// found at all.
func parseQuotaGB(name string) (int, bool) {
	match := quotaPattern.FindStringSubmatch(name)
	if match == nil {
		return 0, false
	}
	gb, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return gb, true
}

// purchaseUpdate carries the behavior fields a purchase rewrites.
type purchaseUpdate struct {
	MonthlySpend    float64
	TopupFreq       int
	Balance         int
	AvgDataUsageGB  float64
	DataRemainingGB float64
}

// applyPurchase computes the behavior mutation for buying a product. Quota
// accumulates across purchases; the usage average is the incremental mean
// weighted by the top-up count before this purchase.
func applyPurchase(behavior models.UserBehavior, product models.Product) purchaseUpdate {
	update := purchaseUpdate{
		MonthlySpend:    behavior.MonthlySpend + float64(product.Price),
		TopupFreq:       behavior.TopupFreq + 1,
		Balance:         behavior.Balance - product.Price,
		AvgDataUsageGB:  behavior.AvgDataUsageGB,
		DataRemainingGB: behavior.DataRemainingGB,
	}
	if update.Balance < 0 {
		update.Balance = 0
	}

	if addedGB, ok := parseQuotaGB(product.Name); ok {
		update.DataRemainingGB = round1(behavior.DataRemainingGB + float64(addedGB))

		if behavior.TopupFreq == 0 {
			update.AvgDataUsageGB = float64(addedGB)
		} else {
			prior := behavior.AvgDataUsageGB * float64(behavior.TopupFreq)
			update.AvgDataUsageGB = (prior + float64(addedGB)) / float64(behavior.TopupFreq+1)
		}
		update.AvgDataUsageGB = round1(update.AvgDataUsageGB)
	}

	return update
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
