package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/ml"
	"backend/internal/models"
)

type createTransactionRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

type insufficientFundsError struct {
	Balance int
	Price   int
}

func (e insufficientFundsError) Error() string {
	return "insufficient balance"
}

type behaviorConflictError struct {
	UserID primitive.ObjectID
}

func (e behaviorConflictError) Error() string {
	return "usage profile changed concurrently"
}

type productNotFoundError struct {
	ProductID primitive.ObjectID
}

func (e productNotFoundError) Error() string {
	return "product not found"
}

type behaviorNotFoundError struct {
	UserID primitive.ObjectID
}

func (e behaviorNotFoundError) Error() string {
	return "usage profile not found"
}

// CreateTransaction processes a purchase: validates product and balance,
// records the transaction and rewrites the usage profile in one session
// transaction, then schedules a background recommendation refresh.
func CreateTransaction(db *mongo.Database, refresher *ml.Refresher) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /transactions"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			return
		}

		var req createTransactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.ProductID))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid productId"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		session, err := db.Client().StartSession()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		var created models.Transaction
		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			var product models.Product
			if err := db.Collection("products").FindOne(sessCtx, bson.M{"_id": productID}).Decode(&product); err != nil {
				if err == mongo.ErrNoDocuments {
					return nil, productNotFoundError{ProductID: productID}
				}
				return nil, err
			}

			var behavior models.UserBehavior
			if err := db.Collection("user_behaviors").FindOne(sessCtx, bson.M{"userId": userID}).Decode(&behavior); err != nil {
				if err == mongo.ErrNoDocuments {
					return nil, behaviorNotFoundError{UserID: userID}
				}
				return nil, err
			}

			if behavior.Balance < product.Price {
				return nil, insufficientFundsError{Balance: behavior.Balance, Price: product.Price}
			}

			now := time.Now()
			transaction := models.Transaction{
				UserID:          userID,
				ProductID:       productID,
				Amount:          product.Price,
				TransactionDate: now,
				CreatedAt:       now,
			}

			res, err := db.Collection("transactions").InsertOne(sessCtx, transaction)
			if err != nil {
				return nil, err
			}
			if id, ok := res.InsertedID.(primitive.ObjectID); ok {
				transaction.ID = id
			}

			update := applyPurchase(behavior, product)

			// The filter pins the counters read above so a racing purchase
			// cannot be applied on top of a stale balance.
			filter := bson.M{
				"userId":    userID,
				"topupFreq": behavior.TopupFreq,
				"balance":   behavior.Balance,
			}
			updateRes, err := db.Collection("user_behaviors").UpdateOne(sessCtx, filter, bson.M{
				"$set": bson.M{
					"monthlySpend":    update.MonthlySpend,
					"topupFreq":       update.TopupFreq,
					"balance":         update.Balance,
					"avgDataUsageGb":  update.AvgDataUsageGB,
					"dataRemainingGb": update.DataRemainingGB,
					"updatedAt":       now,
				},
			})
			if err != nil {
				return nil, err
			}
			if updateRes.MatchedCount == 0 {
				return nil, behaviorConflictError{UserID: userID}
			}

			created = transaction
			return nil, nil
		})
		if err != nil {
			var fundsErr insufficientFundsError
			if errors.As(err, &fundsErr) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "insufficient balance, please top up",
					"balance": fundsErr.Balance,
					"price":   fundsErr.Price,
				})
				return
			}
			var notFoundErr productNotFoundError
			if errors.As(err, &notFoundErr) {
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
				return
			}
			var behaviorErr behaviorNotFoundError
			if errors.As(err, &behaviorErr) {
				c.JSON(http.StatusNotFound, gin.H{"error": "usage profile not found"})
				return
			}
			var conflictErr behaviorConflictError
			if errors.As(err, &conflictErr) {
				c.JSON(http.StatusConflict, gin.H{"error": "concurrent purchase detected, please retry"})
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[TRANSACTION] [INFO] user %s bought product %s for %d", userID.Hex(), productID.Hex(), created.Amount)

		// Best-effort background refresh; its outcome never reaches this
		// response.
		refresher.Enqueue(userID)

		c.JSON(http.StatusCreated, gin.H{
			"status":  "success",
			"message": "purchase successful, recommendations are being refreshed",
			"data":    created,
		})
	}
}

// GetMyTransactions returns the caller's purchase history, newest first, with
// product details attached.
func GetMyTransactions(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /transactions"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection("transactions").Find(ctx, bson.M{"userId": userID},
			options.Find().SetSort(bson.D{{Key: "transactionDate", Value: -1}}))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		var transactions []models.Transaction
		if err := cursor.All(ctx, &transactions); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		products, err := productsByID(ctx, db, productIDs(transactions))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		data := make([]gin.H, 0, len(transactions))
		for _, t := range transactions {
			entry := gin.H{
				"id":               t.ID.Hex(),
				"amount":           t.Amount,
				"transaction_date": t.TransactionDate,
			}
			if product, ok := products[t.ProductID]; ok {
				entry["product"] = product
			}
			data = append(data, entry)
		}

		c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
	}
}

func productIDs(transactions []models.Transaction) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(transactions))
	ids := make([]primitive.ObjectID, 0, len(transactions))
	for _, t := range transactions {
		if _, ok := seen[t.ProductID]; ok {
			continue
		}
		seen[t.ProductID] = struct{}{}
		ids = append(ids, t.ProductID)
	}
	return ids
}

func productsByID(ctx context.Context, db *mongo.Database, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	byID := make(map[primitive.ObjectID]models.Product, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}

	cursor, err := db.Collection("products").Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}
