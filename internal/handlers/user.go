package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/models"
)

type updateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type topUpRequest struct {
	Amount float64 `json:"amount"`
}

// GetProfile returns the caller's profile with spend and top-up counters
// recomputed from the transaction history, plus the loyalty badge.
func GetProfile(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /users/profile"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
			log.Println("[USER] [ERROR] profile lookup failed:", err)
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}

		var behavior models.UserBehavior
		if err := db.Collection("user_behaviors").FindOne(ctx, bson.M{"userId": userID}).Decode(&behavior); err != nil {
			log.Println("[USER] [ERROR] behavior lookup failed:", err)
			c.JSON(http.StatusNotFound, gin.H{"error": "usage profile not found"})
			return
		}

		cursor, err := db.Collection("transactions").Find(ctx, bson.M{"userId": userID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		var transactions []models.Transaction
		if err := cursor.All(ctx, &transactions); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		realSpend, realTopups := spendFromTransactions(transactions)

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data": gin.H{
				"username":          user.Username,
				"email":             user.Email,
				"role":              user.Role,
				"balance":           behavior.Balance,
				"data_remaining_gb": behavior.DataRemainingGB,
				"badge_level":       badgeLevel(realSpend),
				"monthly_spend":     realSpend,
				"topup_freq":        realTopups,
			},
		})
	}
}

func UpdateProfile(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /users/profile"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			return
		}

		var req updateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		set := bson.M{"updatedAt": time.Now()}
		if username := strings.TrimSpace(req.Username); username != "" {
			set["username"] = username
		}
		if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
			count, err := db.Collection("users").CountDocuments(ctx, bson.M{
				"email": email,
				"_id":   bson.M{"$ne": userID},
			})
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			if count > 0 {
				c.JSON(http.StatusConflict, gin.H{"error": "email already in use"})
				return
			}
			set["email"] = email
		}

		res, err := db.Collection("users").UpdateByID(ctx, userID, bson.M{"$set": set})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}

		log.Println("[USER] [INFO] profile updated:", userID.Hex())
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "profile updated"})
	}
}

// TopUp increases the balance by a caller-supplied positive amount.
func TopUp(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /users/topup"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			return
		}

		var req topUpRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}

		amount := int(req.Amount)
		if req.Amount <= 0 || float64(amount) != req.Amount {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res := db.Collection("user_behaviors").FindOneAndUpdate(ctx,
			bson.M{"userId": userID},
			bson.M{
				"$inc": bson.M{"balance": amount},
				"$set": bson.M{"updatedAt": time.Now()},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		)

		var behavior models.UserBehavior
		if err := res.Decode(&behavior); err != nil {
			if err == mongo.ErrNoDocuments {
				c.JSON(http.StatusNotFound, gin.H{"error": "usage profile not found"})
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[USER] [INFO] top up %d for user %s, balance now %d", amount, userID.Hex(), behavior.Balance)
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "top up successful",
			"data":    gin.H{"balance": behavior.Balance},
		})
	}
}
