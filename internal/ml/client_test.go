package ml

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func validPayload() Payload {
	return Payload{
		PlanType:        "Prepaid",
		DeviceBrand:     "Samsung",
		AvgDataUsageGB:  6.5,
		PctVideoUsage:   0.4,
		AvgCallDuration: 12,
		SMSFreq:         3,
		MonthlySpend:    75000,
		TopupFreq:       2,
		TravelScore:     0.1,
		ComplaintCount:  0,
	}
}

func TestPayloadValidate(t *testing.T) {
	if err := validPayload().Validate(); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	p := validPayload()
	p.PlanType = " "
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for missing plan_type")
	}

	p = validPayload()
	p.DeviceBrand = ""
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for missing device_brand")
	}
}

func TestPredictParsesNameOnlyOffers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/predict" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		for _, field := range []string{
			"plan_type", "device_brand", "avg_data_usage_gb", "pct_video_usage",
			"avg_call_duration", "sms_freq", "monthly_spend", "topup_freq",
			"travel_score", "complaint_count",
		} {
			if _, ok := payload[field]; !ok {
				t.Errorf("payload missing field %s", field)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "success",
			"data": {"prediction": {"recommendations": [
				{"offer": "Data Booster", "score": 0.92},
				{"offer": "Family Plan Offer", "score": 0.81, "reason": "big household"}
			]}}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	offers, err := client.Predict(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("got %d offers, want 2", len(offers))
	}
	if offers[0].Name != "Data Booster" || offers[0].Score != 0.92 {
		t.Errorf("first offer = %+v", offers[0])
	}
	if !offers[0].ProductID.IsZero() {
		t.Error("name-only offer should have no product id")
	}
	if offers[1].Reason != "big household" {
		t.Errorf("reason = %q, want passthrough", offers[1].Reason)
	}
}

func TestPredictParsesPreMappedOffers(t *testing.T) {
	mapped := primitive.NewObjectID()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "success",
			"data": {"prediction": {"recommendations": [
				{"offer": "Data Booster", "productId": "` + mapped.Hex() + `", "score": 0.9},
				{"offer": "Legacy Offer", "productId": 42, "score": 0.5}
			]}}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	offers, err := client.Predict(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if offers[0].ProductID != mapped {
		t.Errorf("productId = %s, want %s", offers[0].ProductID.Hex(), mapped.Hex())
	}
	// Numeric ids from a foreign catalog are ignored, name resolution applies.
	if !offers[1].ProductID.IsZero() {
		t.Error("numeric productId should be dropped")
	}
}

func TestPredictRejectsInvalidPayloadBeforeCalling(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	p := validPayload()
	p.PlanType = ""
	if _, err := client.Predict(context.Background(), p); err == nil {
		t.Fatal("expected validation error")
	}
	if called {
		t.Error("scorer must not be called with an incomplete payload")
	}
}

func TestPredictConnectionFailureIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Predict(context.Background(), validPayload())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestPredictContextDeadlineIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Predict(ctx, validPayload())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable on context deadline", err)
	}
}

func TestPredictNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "error"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.Predict(context.Background(), validPayload())
	if err == nil {
		t.Fatal("expected error for scorer status != success")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("a reachable scorer answering with an error is not unavailability")
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"status": "healthy"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	if err := client.Health(context.Background(), time.Second); err != nil {
		t.Fatalf("Health returned error: %v", err)
	}

	server.Close()
	if err := client.Health(context.Background(), time.Second); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable after shutdown", err)
	}
}
