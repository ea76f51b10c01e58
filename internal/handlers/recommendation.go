package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/ml"
	"backend/internal/models"
)

// GetRecommendations returns the stored recommendation set with product
// details, highest score first.
func GetRecommendations(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /recommendations"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		data, err := loadRecommendations(ctx, db, userID)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
	}
}

// GenerateRecommendations runs the refresh synchronously. Unlike the
// background trigger, scorer unavailability is surfaced to the caller here.
func GenerateRecommendations(db *mongo.Database, refresher *ml.Refresher) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /recommendations/generate"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 40*time.Second)
		defer cancel()

		if err := refresher.Refresh(ctx, userID); err != nil {
			if errors.Is(err, ml.ErrUnavailable) {
				log.Println("[ML] [ERROR] scorer unavailable:", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "ml service is not available"})
				return
			}
			if err == mongo.ErrNoDocuments {
				c.JSON(http.StatusNotFound, gin.H{"error": "usage profile not found"})
				return
			}
			log.Println("[ML] [ERROR] manual refresh failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "recommendation refresh failed")
			return
		}

		data, err := loadRecommendations(ctx, db, userID)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "recommendations generated and saved",
			"data":    data,
		})
	}
}

// CheckAndGenerate refreshes only when the account has no stored
// recommendations yet. Scorer failure here is best-effort: the caller still
// gets the (empty) set.
func CheckAndGenerate(db *mongo.Database, refresher *ml.Refresher) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /recommendations/check-and-generate"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 40*time.Second)
		defer cancel()

		count, err := db.Collection("recommendations").CountDocuments(ctx, bson.M{"userId": userID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		generated := false
		if count == 0 {
			if err := refresher.Refresh(ctx, userID); err != nil {
				log.Println("[ML] [WARN] check-and-generate refresh failed:", err)
			} else {
				generated = true
			}
		}

		data, err := loadRecommendations(ctx, db, userID)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "success",
			"generated": generated,
			"data":      data,
		})
	}
}

// MLHealth proxies the scorer's health endpoint.
func MLHealth(client *ml.Client, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := client.Health(c.Request.Context(), timeout); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "ml service is not available"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "ml service is healthy"})
	}
}

func loadRecommendations(ctx context.Context, db *mongo.Database, userID primitive.ObjectID) ([]gin.H, error) {
	cursor, err := db.Collection("recommendations").Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "score", Value: -1}}))
	if err != nil {
		return nil, err
	}

	var recs []models.Recommendation
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ProductID)
	}
	products, err := productsByID(ctx, db, ids)
	if err != nil {
		return nil, err
	}

	data := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		entry := gin.H{
			"id":     rec.ID.Hex(),
			"score":  rec.Score,
			"reason": rec.Reason,
		}
		if product, ok := products[rec.ProductID]; ok {
			entry["product"] = product
		}
		data = append(data, entry)
	}
	return data, nil
}
