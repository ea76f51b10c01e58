package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"backend/internal/models"
)

// ErrUnavailable marks scorer calls that failed to reach the service or timed
// out, as opposed to the scorer answering with a failure.
var ErrUnavailable = errors.New("ml service unavailable")

// Payload is the exact field set the scorer expects. Every field must be
// present on the wire; validation happens before the call is attempted.
type Payload struct {
	PlanType        string  `json:"plan_type"`
	DeviceBrand     string  `json:"device_brand"`
	AvgDataUsageGB  float64 `json:"avg_data_usage_gb"`
	PctVideoUsage   float64 `json:"pct_video_usage"`
	AvgCallDuration float64 `json:"avg_call_duration"`
	SMSFreq         int     `json:"sms_freq"`
	MonthlySpend    float64 `json:"monthly_spend"`
	TopupFreq       int     `json:"topup_freq"`
	TravelScore     float64 `json:"travel_score"`
	ComplaintCount  int     `json:"complaint_count"`
}

// PayloadFromBehavior serializes the scorer's field subset of a usage profile.
func PayloadFromBehavior(b models.UserBehavior) Payload {
	return Payload{
		PlanType:        b.PlanType,
		DeviceBrand:     b.DeviceBrand,
		AvgDataUsageGB:  b.AvgDataUsageGB,
		PctVideoUsage:   b.PctVideoUsage,
		AvgCallDuration: b.AvgCallDuration,
		SMSFreq:         b.SMSFreq,
		MonthlySpend:    b.MonthlySpend,
		TopupFreq:       b.TopupFreq,
		TravelScore:     b.TravelScore,
		ComplaintCount:  b.ComplaintCount,
	}
}

func (p Payload) Validate() error {
	if strings.TrimSpace(p.PlanType) == "" {
		return errors.New("plan_type is required")
	}
	if strings.TrimSpace(p.DeviceBrand) == "" {
		return errors.New("device_brand is required")
	}
	return nil
}

// Offer is the normalized scorer entry. ProductID is set only when the scorer
// side already mapped the offer name to a catalog product; otherwise the name
// is resolved locally.
type Offer struct {
	Name      string
	ProductID primitive.ObjectID
	Score     float64
	Reason    string
}

type wireOffer struct {
	Offer     string          `json:"offer"`
	ProductID json.RawMessage `json:"productId"`
	Score     float64         `json:"score"`
	Reason    string          `json:"reason"`
}

type predictResponse struct {
	Status string `json:"status"`
	Data   struct {
		Prediction struct {
			Recommendations []wireOffer `json:"recommendations"`
		} `json:"prediction"`
	} `json:"data"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Predict calls the scorer and returns the normalized offer list. Both the
// name-only and the pre-mapped response shapes are accepted.
func (c *Client) Predict(ctx context.Context, payload Payload) ([]Offer, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("%w: scorer returned 503", ErrUnavailable)
	}
	if res.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("scorer returned %d: %s", res.StatusCode, bytes.TrimSpace(data))
	}

	var parsed predictResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if parsed.Status != "success" {
		return nil, fmt.Errorf("scorer status %q", parsed.Status)
	}

	offers := make([]Offer, 0, len(parsed.Data.Prediction.Recommendations))
	for _, w := range parsed.Data.Prediction.Recommendations {
		offers = append(offers, Offer{
			Name:      strings.TrimSpace(w.Offer),
			ProductID: parseProductID(w.ProductID),
			Score:     w.Score,
			Reason:    strings.TrimSpace(w.Reason),
		})
	}
	return offers, nil
}

// Health probes the scorer's health endpoint.
func (c *Client) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrUnavailable, res.StatusCode)
	}
	return nil
}

// parseProductID accepts a hex object id string; any other shape (numeric ids
// from a foreign catalog, null, absent) falls back to name resolution.
func parseProductID(raw json.RawMessage) primitive.ObjectID {
	if len(raw) == 0 {
		return primitive.NilObjectID
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return primitive.NilObjectID
	}

	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil {
		return primitive.NilObjectID
	}
	return id
}
