package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserBehavior holds the per-account usage profile. The historical fields are
// seeded at registration; balance, quota, spend and top-up counters are
// mutated only by the purchase and top-up flows.
type UserBehavior struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	PlanType        string             `bson:"planType" json:"plan_type"`
	DeviceBrand     string             `bson:"deviceBrand" json:"device_brand"`
	AvgDataUsageGB  float64            `bson:"avgDataUsageGb" json:"avg_data_usage_gb"`
	PctVideoUsage   float64            `bson:"pctVideoUsage" json:"pct_video_usage"`
	AvgCallDuration float64            `bson:"avgCallDuration" json:"avg_call_duration"`
	SMSFreq         int                `bson:"smsFreq" json:"sms_freq"`
	MonthlySpend    float64            `bson:"monthlySpend" json:"monthly_spend"`
	TopupFreq       int                `bson:"topupFreq" json:"topup_freq"`
	TravelScore     float64            `bson:"travelScore" json:"travel_score"`
	ComplaintCount  int                `bson:"complaintCount" json:"complaint_count"`
	GamingUsage     float64            `bson:"gamingUsage" json:"gaming_usage"`
	RoamingUsage    bool               `bson:"roamingUsage" json:"roaming_usage"`
	Balance         int                `bson:"balance" json:"balance"`
	DataRemainingGB float64            `bson:"dataRemainingGb" json:"data_remaining_gb"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}
