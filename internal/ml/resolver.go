package ml

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"backend/internal/models"
)

// ResolveProductID maps a scorer offer name to a catalog product. Exact
// case-insensitive match wins, then substring containment in either direction,
// then the product sharing the most name tokens with the offer, then the first
// catalog product by insertion order as the deliberate default.
func ResolveProductID(offerName string, products []models.Product) primitive.ObjectID {
	if len(products) == 0 {
		return primitive.NilObjectID
	}

	lower := strings.ToLower(strings.TrimSpace(offerName))
	if lower == "" {
		return products[0].ID
	}

	for _, p := range products {
		if strings.ToLower(p.Name) == lower {
			return p.ID
		}
	}

	for _, p := range products {
		name := strings.ToLower(p.Name)
		if strings.Contains(lower, name) || strings.Contains(name, lower) {
			return p.ID
		}
	}

	// Word-level overlap catches reordered or padded offer names, e.g.
	// "booster plus extra" against "Data Booster Plus". A single shared token
	// is too weak a signal and falls through to the default.
	offerTokens := strings.Fields(lower)
	bestID := primitive.NilObjectID
	bestOverlap := 1
	for _, p := range products {
		overlap := 0
		nameTokens := strings.Fields(strings.ToLower(p.Name))
		for _, token := range offerTokens {
			for _, nameToken := range nameTokens {
				if token == nameToken {
					overlap++
					break
				}
			}
		}
		if overlap > bestOverlap {
			bestOverlap = overlap
			bestID = p.ID
		}
	}
	if !bestID.IsZero() {
		return bestID
	}

	return products[0].ID
}

// DeriveReason builds the human-readable reason string from profile
// thresholds when the scorer did not supply one.
func DeriveReason(b models.UserBehavior) string {
	reasons := make([]string, 0, 3)

	if b.AvgDataUsageGB > 5 {
		reasons = append(reasons, "high data usage")
	}
	if b.PctVideoUsage > 0.5 {
		reasons = append(reasons, "frequent video streaming")
	}
	if b.MonthlySpend > 150000 {
		reasons = append(reasons, "premium budget")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "based on usage behavior")
	}

	return strings.Join(reasons, ". ") + "."
}
