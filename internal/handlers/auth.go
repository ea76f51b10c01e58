package handlers

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"backend/internal/ml"
	"backend/internal/models"
)

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

var deviceBrands = []string{"Samsung", "Xiaomi", "Oppo", "Vivo", "iPhone"}

// seedBehavior builds the initial usage profile: randomized historical fields
// carried over from the "previous provider", zeroed transactional state and
// the starting balance grant.
func seedBehavior(userID primitive.ObjectID, signupBalance int, now time.Time) models.UserBehavior {
	planType := "Prepaid"
	if rand.Float64() > 0.5 {
		planType = "Postpaid"
	}

	return models.UserBehavior{
		UserID:          userID,
		PlanType:        planType,
		DeviceBrand:     deviceBrands[rand.Intn(len(deviceBrands))],
		AvgDataUsageGB:  round1(rand.Float64() * 20),
		PctVideoUsage:   round2(rand.Float64()),
		AvgCallDuration: round1(rand.Float64() * 100),
		SMSFreq:         rand.Intn(20),
		GamingUsage:     round1(rand.Float64() * 20),
		TravelScore:     round2(rand.Float64()),
		ComplaintCount:  0,
		MonthlySpend:    0,
		TopupFreq:       0,
		Balance:         signupBalance,
		DataRemainingGB: 0,
		RoamingUsage:    false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func round2(v float64) float64 {
	return float64(int(v*100)) / 100
}

func Register(db *mongo.Database, refresher *ml.Refresher, jwtSecret string, accessTTL time.Duration, signupBalance int) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/register"
		defer handlePanic(c, route)

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		username := strings.TrimSpace(req.Username)
		password := strings.TrimSpace(req.Password)
		if email == "" || username == "" || password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username, email and password are required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		count, err := db.Collection("users").CountDocuments(ctx, bson.M{"email": email})
		if err != nil {
			log.Println("[AUTH] [ERROR] register db error:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count > 0 {
			log.Println("[AUTH] [ERROR] register email exists:", email)
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Println("[AUTH] [ERROR] register password hash failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "password hash failed")
			return
		}

		now := time.Now()
		user := models.User{
			Username:     username,
			Email:        email,
			PasswordHash: string(hash),
			Role:         "user",
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		session, err := db.Client().StartSession()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		var userID primitive.ObjectID
		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			res, err := db.Collection("users").InsertOne(sessCtx, user)
			if err != nil {
				return nil, err
			}
			userID = res.InsertedID.(primitive.ObjectID)

			behavior := seedBehavior(userID, signupBalance, now)
			if _, err := db.Collection("user_behaviors").InsertOne(sessCtx, behavior); err != nil {
				return nil, err
			}
			return nil, nil
		})
		if err != nil {
			// A registration racing past the pre-check trips the unique email
			// index inside the transaction.
			if mongo.IsDuplicateKeyError(err) {
				log.Println("[AUTH] [ERROR] register email exists:", email)
				c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
				return
			}
			log.Println("[AUTH] [ERROR] register insert failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		token, err := issueToken(userID, user.Role, jwtSecret, accessTTL)
		if err != nil {
			log.Println("[AUTH] [ERROR] register token generation failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		// Cold-start recommendations; never blocks the registration response.
		refresher.Enqueue(userID)

		log.Println("[AUTH] [INFO] user registered:", email)
		c.JSON(http.StatusCreated, gin.H{
			"message": "registration successful",
			"token":   token,
			"user": gin.H{
				"id":       userID.Hex(),
				"username": username,
				"email":    email,
				"role":     user.Role,
			},
		})
	}
}

func Login(db *mongo.Database, jwtSecret string, accessTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/login"
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		if email == "" || strings.TrimSpace(req.Password) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
			if err == mongo.ErrNoDocuments {
				log.Println("[AUTH] [ERROR] login invalid credentials")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			log.Println("[AUTH] [ERROR] login user lookup failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			log.Println("[AUTH] [ERROR] login invalid credentials")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token, err := issueToken(user.ID, user.Role, jwtSecret, accessTTL)
		if err != nil {
			log.Println("[AUTH] [ERROR] login token generation failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		var behavior models.UserBehavior
		if err := db.Collection("user_behaviors").FindOne(ctx, bson.M{"userId": user.ID}).Decode(&behavior); err != nil {
			log.Println("[AUTH] [WARN] login behavior lookup failed:", err)
		}

		log.Println("[AUTH] [INFO] login succeeded:", user.Email)
		c.JSON(http.StatusOK, gin.H{
			"message": "login successful",
			"token":   token,
			"user": gin.H{
				"id":       user.ID.Hex(),
				"username": user.Username,
				"email":    user.Email,
				"role":     user.Role,
				"behavior": behavior,
			},
		})
	}
}

func issueToken(userID primitive.ObjectID, role, secret string, accessTTL time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID.Hex(),
		"role": role,
		"exp":  time.Now().Add(accessTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
