package handlers

import (
	"testing"

	"backend/internal/models"
)

func TestParseQuotaGB(t *testing.T) {
	tests := []struct {
		name   string
		wantGB int
		wantOK bool
	}{
		{"Internet 15GB", 15, true},
		{"Internet 15 GB", 15, true},
		{"Family Plan Offer Special 50GB Edition", 50, true},
		{"paket 8gb murah", 8, true},
		{"Combo 10Gb", 10, true},
		{"Data Booster", 0, false},
		{"Unlimited Calls", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		gb, ok := parseQuotaGB(tt.name)
		if ok != tt.wantOK || gb != tt.wantGB {
			t.Errorf("parseQuotaGB(%q) = (%d, %v), want (%d, %v)", tt.name, gb, ok, tt.wantGB, tt.wantOK)
		}
	}
}

func TestApplyPurchaseSpendAndBalance(t *testing.T) {
	behavior := models.UserBehavior{Balance: 100000, MonthlySpend: 10000, TopupFreq: 3}
	product := models.Product{Name: "Data Booster", Price: 25000}

	update := applyPurchase(behavior, product)

	if update.Balance != 75000 {
		t.Errorf("balance = %d, want 75000", update.Balance)
	}
	if update.MonthlySpend != 35000 {
		t.Errorf("monthlySpend = %v, want 35000", update.MonthlySpend)
	}
	if update.TopupFreq != 4 {
		t.Errorf("topupFreq = %d, want 4", update.TopupFreq)
	}
	if update.DataRemainingGB != 0 || update.AvgDataUsageGB != 0 {
		t.Errorf("quota fields changed for a product without a GB token: %+v", update)
	}
}

func TestApplyPurchaseBalanceNeverNegative(t *testing.T) {
	behavior := models.UserBehavior{Balance: 100}
	product := models.Product{Name: "Promo", Price: 100}

	update := applyPurchase(behavior, product)
	if update.Balance != 0 {
		t.Errorf("balance = %d, want 0", update.Balance)
	}
}

func TestApplyPurchaseQuotaAccumulates(t *testing.T) {
	behavior := models.UserBehavior{
		Balance:         500000,
		DataRemainingGB: 3.5,
		AvgDataUsageGB:  12,
		TopupFreq:       2,
	}
	product := models.Product{Name: "Internet 15GB", Price: 50000}

	update := applyPurchase(behavior, product)

	if update.DataRemainingGB != 18.5 {
		t.Errorf("dataRemainingGb = %v, want 18.5", update.DataRemainingGB)
	}
	// ((12*2)+15)/3 = 13.0
	if update.AvgDataUsageGB != 13 {
		t.Errorf("avgDataUsageGb = %v, want 13", update.AvgDataUsageGB)
	}
}

func TestApplyPurchaseFirstTopupSetsAverage(t *testing.T) {
	behavior := models.UserBehavior{Balance: 100000, AvgDataUsageGB: 7.3, TopupFreq: 0}
	product := models.Product{Name: "Starter 5GB", Price: 10000}

	update := applyPurchase(behavior, product)

	if update.AvgDataUsageGB != 5 {
		t.Errorf("avgDataUsageGb = %v, want 5 on first top-up", update.AvgDataUsageGB)
	}
	if update.DataRemainingGB != 5 {
		t.Errorf("dataRemainingGb = %v, want 5", update.DataRemainingGB)
	}
}

func TestApplyPurchaseAverageRoundsToOneDecimal(t *testing.T) {
	behavior := models.UserBehavior{Balance: 100000, AvgDataUsageGB: 10, TopupFreq: 2}
	product := models.Product{Name: "Extra 5GB", Price: 1000}

	update := applyPurchase(behavior, product)

	// ((10*2)+5)/3 = 8.333... rounds to 8.3
	if update.AvgDataUsageGB != 8.3 {
		t.Errorf("avgDataUsageGb = %v, want 8.3", update.AvgDataUsageGB)
	}
}

func TestRound1(t *testing.T) {
	if got := round1(8.36); got != 8.4 {
		t.Errorf("round1(8.36) = %v, want 8.4", got)
	}
	if got := round1(8.34); got != 8.3 {
		t.Errorf("round1(8.34) = %v, want 8.3", got)
	}
}
