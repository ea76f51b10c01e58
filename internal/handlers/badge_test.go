package handlers

import (
	"testing"

	"backend/internal/models"
)

func TestBadgeLevelBoundaries(t *testing.T) {
	tests := []struct {
		spend float64
		want  string
	}{
		{150001, "Gold"},
		{150000, "Silver"},
		{50001, "Silver"},
		{50000, "Bronze"},
		{0, "Bronze"},
	}

	for _, tt := range tests {
		if got := badgeLevel(tt.spend); got != tt.want {
			t.Errorf("badgeLevel(%v) = %q, want %q", tt.spend, got, tt.want)
		}
	}
}

func TestSpendFromTransactions(t *testing.T) {
	transactions := []models.Transaction{
		{Amount: 25000},
		{Amount: 50000},
		{Amount: 10000},
	}

	spend, topups := spendFromTransactions(transactions)
	if spend != 85000 {
		t.Errorf("spend = %v, want 85000", spend)
	}
	if topups != 3 {
		t.Errorf("topups = %d, want 3", topups)
	}
}

func TestSpendFromTransactionsEmpty(t *testing.T) {
	spend, topups := spendFromTransactions(nil)
	if spend != 0 || topups != 0 {
		t.Errorf("spend, topups = %v, %d, want 0, 0", spend, topups)
	}
}
