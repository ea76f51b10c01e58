package handlers

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestSeedBehaviorStartsClean(t *testing.T) {
	userID := primitive.NewObjectID()
	behavior := seedBehavior(userID, 100000, time.Now())

	if behavior.UserID != userID {
		t.Errorf("userId = %s, want %s", behavior.UserID.Hex(), userID.Hex())
	}
	if behavior.Balance != 100000 {
		t.Errorf("balance = %d, want the signup grant", behavior.Balance)
	}
	if behavior.MonthlySpend != 0 || behavior.TopupFreq != 0 || behavior.DataRemainingGB != 0 {
		t.Errorf("transactional fields not zeroed: %+v", behavior)
	}
	if behavior.ComplaintCount != 0 || behavior.RoamingUsage {
		t.Errorf("complaintCount/roaming not zeroed: %+v", behavior)
	}
	if behavior.PlanType != "Prepaid" && behavior.PlanType != "Postpaid" {
		t.Errorf("unexpected planType %q", behavior.PlanType)
	}
	if behavior.AvgDataUsageGB < 0 || behavior.AvgDataUsageGB >= 20 {
		t.Errorf("avgDataUsageGb out of seed range: %v", behavior.AvgDataUsageGB)
	}
	if behavior.PctVideoUsage < 0 || behavior.PctVideoUsage > 1 {
		t.Errorf("pctVideoUsage out of [0,1]: %v", behavior.PctVideoUsage)
	}
	if behavior.TravelScore < 0 || behavior.TravelScore > 1 {
		t.Errorf("travelScore out of [0,1]: %v", behavior.TravelScore)
	}
}

func TestDuplicateKeyDetection(t *testing.T) {
	dup := mongo.WriteException{
		WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}},
	}
	if !mongo.IsDuplicateKeyError(dup) {
		t.Error("unique index violation not recognized as duplicate key")
	}
	// Transaction machinery may wrap the write error before it reaches the
	// handler.
	if !mongo.IsDuplicateKeyError(fmt.Errorf("abort: %w", error(dup))) {
		t.Error("wrapped unique index violation not recognized")
	}
	if mongo.IsDuplicateKeyError(errors.New("connection reset")) {
		t.Error("unrelated error misread as duplicate key")
	}
}

func TestSeedBehaviorDeviceBrandFromList(t *testing.T) {
	behavior := seedBehavior(primitive.NewObjectID(), 100000, time.Now())

	found := false
	for _, brand := range deviceBrands {
		if behavior.DeviceBrand == brand {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("deviceBrand %q not in the seed list", behavior.DeviceBrand)
	}
}
