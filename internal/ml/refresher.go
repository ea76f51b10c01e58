package ml

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/singleflight"

	"backend/internal/models"
)

// Refresher replaces an account's stored recommendation set from the external
// scorer. Background triggers go through a bounded job queue consumed by a
// fixed set of workers; their failures are logged and swallowed. Concurrent
// refreshes for the same account coalesce through singleflight.
type Refresher struct {
	db     *mongo.Database
	client *Client
	jobs   chan primitive.ObjectID
	group  singleflight.Group
}

func NewRefresher(db *mongo.Database, client *Client, workers, queueSize int) *Refresher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	r := &Refresher{
		db:     db,
		client: client,
		jobs:   make(chan primitive.ObjectID, queueSize),
	}
	for i := 0; i < workers; i++ {
		go r.worker()
	}
	return r
}

// Enqueue schedules a background refresh. It never blocks the caller; a full
// queue drops the job with a log line, consistent with best-effort semantics.
func (r *Refresher) Enqueue(userID primitive.ObjectID) {
	select {
	case r.jobs <- userID:
	default:
		log.Println("[ML] [WARN] refresh queue full, dropping job for user:", userID.Hex())
	}
}

// backgroundTimeout bounds a whole background refresh, scorer call included.
// It sits below the HTTP client timeout so a slow scorer is cut off earlier on
// this path than on a manual generate.
const backgroundTimeout = 30 * time.Second

func (r *Refresher) worker() {
	for userID := range r.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		if err := r.Refresh(ctx, userID); err != nil {
			log.Println("[ML] [ERROR] background refresh failed for user:", userID.Hex(), err)
		}
		cancel()
	}
}

// Refresh re-reads the usage profile, calls the scorer and replaces the
// account's recommendation set. The stored set is left untouched on any
// failure before the replace step.
func (r *Refresher) Refresh(ctx context.Context, userID primitive.ObjectID) error {
	_, err, _ := r.group.Do(userID.Hex(), func() (interface{}, error) {
		return nil, r.refresh(ctx, userID)
	})
	return err
}

func (r *Refresher) refresh(ctx context.Context, userID primitive.ObjectID) error {
	var behavior models.UserBehavior
	if err := r.db.Collection("user_behaviors").FindOne(ctx, bson.M{"userId": userID}).Decode(&behavior); err != nil {
		return err
	}

	offers, err := r.client.Predict(ctx, PayloadFromBehavior(behavior))
	if err != nil {
		return err
	}

	cursor, err := r.db.Collection("products").Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return err
	}

	recs := buildRecommendations(userID, offers, products, behavior, time.Now())
	if err := r.replace(ctx, userID, recs); err != nil {
		return err
	}

	log.Printf("[ML] [INFO] saved %d recommendations for user %s", len(recs), userID.Hex())
	return nil
}

// buildRecommendations normalizes scorer offers into recommendation rows.
// Offers the scorer already mapped keep their product id as long as it exists
// in the catalog; everything else resolves by name.
func buildRecommendations(userID primitive.ObjectID, offers []Offer, products []models.Product, behavior models.UserBehavior, now time.Time) []models.Recommendation {
	known := make(map[primitive.ObjectID]bool, len(products))
	for _, p := range products {
		known[p.ID] = true
	}

	recs := make([]models.Recommendation, 0, len(offers))
	for _, offer := range offers {
		productID := offer.ProductID
		if productID.IsZero() || !known[productID] {
			productID = ResolveProductID(offer.Name, products)
		}
		if productID.IsZero() {
			continue
		}

		score := offer.Score
		if score == 0 {
			score = 0.95
		}
		reason := offer.Reason
		if reason == "" {
			reason = DeriveReason(behavior)
		}

		recs = append(recs, models.Recommendation{
			UserID:    userID,
			ProductID: productID,
			Score:     score,
			Reason:    reason,
			CreatedAt: now,
		})
	}
	return recs
}

// replace swaps the whole stored set in one transaction so readers never see
// a half-replaced state.
func (r *Refresher) replace(ctx context.Context, userID primitive.ObjectID, recs []models.Recommendation) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if _, err := r.db.Collection("recommendations").DeleteMany(sessCtx, bson.M{"userId": userID}); err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, nil
		}

		docs := make([]interface{}, 0, len(recs))
		for _, rec := range recs {
			docs = append(docs, rec)
		}
		if _, err := r.db.Collection("recommendations").InsertMany(sessCtx, docs); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}
