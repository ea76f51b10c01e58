package handlers

import (
	"context"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/models"
)

type adminUpdateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// DashboardStats aggregates the headline numbers for the admin dashboard.
func DashboardStats(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/dashboard/stats"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		today := time.Now().Truncate(24 * time.Hour)

		totalRevenue, totalTransactions, err := revenueAndCount(ctx, db, bson.M{})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		todayRevenue, todayTransactions, err := revenueAndCount(ctx, db, bson.M{
			"transactionDate": bson.M{"$gte": today},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		totalUsers, err := db.Collection("users").CountDocuments(ctx, bson.M{"role": "user"})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		totalProducts, err := db.Collection("products").CountDocuments(ctx, bson.M{})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"totalRevenue":      totalRevenue,
			"totalTransactions": totalTransactions,
			"totalUsers":        totalUsers,
			"totalProducts":     totalProducts,
			"todayRevenue":      todayRevenue,
			"todayTransactions": todayTransactions,
		})
	}
}

func revenueAndCount(ctx context.Context, db *mongo.Database, match bson.M) (int64, int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"revenue": bson.M{"$sum": "$amount"},
			"count":   bson.M{"$sum": 1},
		}}},
	}

	cursor, err := db.Collection("transactions").Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, err
	}

	var results []struct {
		Revenue int64 `bson:"revenue"`
		Count   int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, 0, err
	}
	if len(results) == 0 {
		return 0, 0, nil
	}
	return results[0].Revenue, results[0].Count, nil
}

// SalesChart groups revenue into week/month/year buckets over a trailing
// window sized to each period.
func SalesChart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/dashboard/sales-chart"
		defer handlePanic(c, route)

		period := strings.TrimSpace(c.DefaultQuery("period", "month"))

		var format string
		var since time.Time
		now := time.Now()
		switch period {
		case "week":
			format = "%Y-%m-%d"
			since = now.AddDate(0, 0, -7*8)
		case "month":
			format = "%Y-%m"
			since = now.AddDate(0, -6, 0)
		case "year":
			format = "%Y"
			since = now.AddDate(-3, 0, 0)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		pipeline := mongo.Pipeline{
			{{Key: "$match", Value: bson.M{"transactionDate": bson.M{"$gte": since}}}},
			{{Key: "$group", Value: bson.M{
				"_id":     bson.M{"$dateToString": bson.M{"format": format, "date": "$transactionDate"}},
				"revenue": bson.M{"$sum": "$amount"},
			}}},
			{{Key: "$sort", Value: bson.M{"_id": 1}}},
		}

		cursor, err := db.Collection("transactions").Aggregate(ctx, pipeline)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		var buckets []struct {
			Month   string `bson:"_id"`
			Revenue int64  `bson:"revenue"`
		}
		if err := cursor.All(ctx, &buckets); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		data := make([]gin.H, 0, len(buckets))
		for _, b := range buckets {
			data = append(data, gin.H{"month": b.Month, "revenue": b.Revenue})
		}
		c.JSON(http.StatusOK, data)
	}
}

// TopProducts returns the five best sellers by transaction count.
func TopProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/dashboard/top-products"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		pipeline := mongo.Pipeline{
			{{Key: "$group", Value: bson.M{
				"_id":     "$productId",
				"sales":   bson.M{"$sum": 1},
				"revenue": bson.M{"$sum": "$amount"},
			}}},
			{{Key: "$sort", Value: bson.M{"sales": -1}}},
			{{Key: "$limit", Value: 5}},
		}

		cursor, err := db.Collection("transactions").Aggregate(ctx, pipeline)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		var rows []struct {
			ProductID primitive.ObjectID `bson:"_id"`
			Sales     int64              `bson:"sales"`
			Revenue   int64              `bson:"revenue"`
		}
		if err := cursor.All(ctx, &rows); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		ids := make([]primitive.ObjectID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ProductID)
		}
		products, err := productsByID(ctx, db, ids)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		data := make([]gin.H, 0, len(rows))
		for _, row := range rows {
			name := "Unknown"
			if product, ok := products[row.ProductID]; ok {
				name = product.Name
			}
			data = append(data, gin.H{
				"id":      row.ProductID.Hex(),
				"name":    name,
				"sales":   row.Sales,
				"revenue": row.Revenue,
			})
		}
		c.JSON(http.StatusOK, data)
	}
}

// RecentTransactions lists the latest purchases with user and product names.
func RecentTransactions(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/dashboard/recent-transactions"
		defer handlePanic(c, route)

		_, limit, err := parsePaginationParams("", c.DefaultQuery("limit", "10"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		cursor, err := db.Collection("transactions").Find(ctx, bson.M{},
			options.Find().SetSort(bson.D{{Key: "transactionDate", Value: -1}}).SetLimit(limit))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		var transactions []models.Transaction
		if err := cursor.All(ctx, &transactions); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		data, err := enrichTransactions(ctx, db, transactions)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, data)
	}
}

// AdminGetUsers lists non-admin accounts with their transaction totals.
func AdminGetUsers(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/users"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		cursor, err := db.Collection("users").Find(ctx, bson.M{"role": "user"},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		var users []models.User
		if err := cursor.All(ctx, &users); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		pipeline := mongo.Pipeline{
			{{Key: "$group", Value: bson.M{
				"_id":   "$userId",
				"count": bson.M{"$sum": 1},
				"spent": bson.M{"$sum": "$amount"},
			}}},
		}
		aggCursor, err := db.Collection("transactions").Aggregate(ctx, pipeline)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		var totals []struct {
			UserID primitive.ObjectID `bson:"_id"`
			Count  int64              `bson:"count"`
			Spent  int64              `bson:"spent"`
		}
		if err := aggCursor.All(ctx, &totals); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		totalsByUser := make(map[primitive.ObjectID]struct {
			Count int64
			Spent int64
		}, len(totals))
		for _, t := range totals {
			totalsByUser[t.UserID] = struct {
				Count int64
				Spent int64
			}{t.Count, t.Spent}
		}

		data := make([]gin.H, 0, len(users))
		for _, user := range users {
			t := totalsByUser[user.ID]
			data = append(data, gin.H{
				"id":                 user.ID.Hex(),
				"username":           user.Username,
				"email":              user.Email,
				"role":               user.Role,
				"created_at":         user.CreatedAt,
				"total_transactions": t.Count,
				"total_spent":        t.Spent,
			})
		}
		c.JSON(http.StatusOK, data)
	}
}

func AdminUpdateUser(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/users/:id"
		defer handlePanic(c, route)

		userID, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param("id")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var req adminUpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		role := strings.TrimSpace(req.Role)
		if role != "user" && role != "admin" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be user or admin"})
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

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

		res, err := db.Collection("users").UpdateByID(ctx, userID, bson.M{
			"$set": bson.M{
				"username":  strings.TrimSpace(req.Username),
				"email":     email,
				"role":      role,
				"updatedAt": time.Now(),
			},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}

		log.Println("[ADMIN] [INFO] user updated:", userID.Hex())
		c.JSON(http.StatusOK, gin.H{"message": "user updated successfully"})
	}
}

// AdminDeleteUser removes an account together with its behavior profile and
// recommendations. Admin accounts and accounts with transactions stay.
func AdminDeleteUser(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/users/:id"
		defer handlePanic(c, route)

		userID, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param("id")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
			if err == mongo.ErrNoDocuments {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if user.Role == "admin" {
			c.JSON(http.StatusConflict, gin.H{"error": "cannot delete admin users"})
			return
		}

		transactionCount, err := db.Collection("transactions").CountDocuments(ctx, bson.M{"userId": userID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if transactionCount > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "cannot delete user with existing transactions"})
			return
		}

		session, err := db.Client().StartSession()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			if _, err := db.Collection("recommendations").DeleteMany(sessCtx, bson.M{"userId": userID}); err != nil {
				return nil, err
			}
			if _, err := db.Collection("user_behaviors").DeleteOne(sessCtx, bson.M{"userId": userID}); err != nil {
				return nil, err
			}
			if _, err := db.Collection("users").DeleteOne(sessCtx, bson.M{"_id": userID}); err != nil {
				return nil, err
			}
			return nil, nil
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Println("[ADMIN] [INFO] user deleted:", userID.Hex())
		c.JSON(http.StatusOK, gin.H{"message": "user deleted successfully"})
	}
}

// AdminGetTransactions lists all purchases with optional user and date range
// filters, paginated.
func AdminGetTransactions(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/transactions"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pagination params"})
			return
		}

		filter := bson.M{}
		if userIDStr := strings.TrimSpace(c.Query("userId")); userIDStr != "" {
			userID, err := primitive.ObjectIDFromHex(userIDStr)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
				return
			}
			filter["userId"] = userID
		}
		dateFilter, err := dateRangeFilter(c.Query("startDate"), c.Query("endDate"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if dateFilter != nil {
			filter["transactionDate"] = dateFilter
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		total, err := db.Collection("transactions").CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		cursor, err := db.Collection("transactions").Find(ctx, filter,
			options.Find().
				SetSort(bson.D{{Key: "transactionDate", Value: -1}}).
				SetSkip((page-1)*limit).
				SetLimit(limit))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		var transactions []models.Transaction
		if err := cursor.All(ctx, &transactions); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		data, err := enrichTransactions(ctx, db, transactions)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"transactions": data,
			"pagination": gin.H{
				"page":       page,
				"limit":      limit,
				"total":      total,
				"totalPages": int64(math.Ceil(float64(total) / float64(limit))),
			},
		})
	}
}

// AdminGenerateReport summarizes transactions in a date range.
func AdminGenerateReport(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/reports/generate"
		defer handlePanic(c, route)

		filter := bson.M{}
		dateFilter, err := dateRangeFilter(c.Query("startDate"), c.Query("endDate"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if dateFilter != nil {
			filter["transactionDate"] = dateFilter
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		cursor, err := db.Collection("transactions").Find(ctx, filter,
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

		data, err := enrichTransactions(ctx, db, transactions)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		totalRevenue := int64(0)
		for _, t := range transactions {
			totalRevenue += int64(t.Amount)
		}

		c.JSON(http.StatusOK, gin.H{
			"summary": gin.H{
				"totalRevenue":      totalRevenue,
				"totalTransactions": len(transactions),
			},
			"transactions": data,
		})
	}
}

func dateRangeFilter(startStr, endStr string) (bson.M, error) {
	filter := bson.M{}
	if start := strings.TrimSpace(startStr); start != "" {
		parsed, err := time.Parse("2006-01-02", start)
		if err != nil {
			return nil, fmtDateError("startDate")
		}
		filter["$gte"] = parsed
	}
	if end := strings.TrimSpace(endStr); end != "" {
		parsed, err := time.Parse("2006-01-02", end)
		if err != nil {
			return nil, fmtDateError("endDate")
		}
		// Half-open upper bound: the whole end day is included, midnight of
		// the next day is not.
		filter["$lt"] = parsed.AddDate(0, 0, 1)
	}
	if len(filter) == 0 {
		return nil, nil
	}
	return filter, nil
}

type dateError string

func (e dateError) Error() string { return string(e) }

func fmtDateError(field string) error {
	return dateError("invalid " + field + ", expected YYYY-MM-DD")
}

func enrichTransactions(ctx context.Context, db *mongo.Database, transactions []models.Transaction) ([]gin.H, error) {
	products, err := productsByID(ctx, db, productIDs(transactions))
	if err != nil {
		return nil, err
	}

	userIDSet := make(map[primitive.ObjectID]struct{}, len(transactions))
	userIDs := make([]primitive.ObjectID, 0, len(transactions))
	for _, t := range transactions {
		if _, ok := userIDSet[t.UserID]; ok {
			continue
		}
		userIDSet[t.UserID] = struct{}{}
		userIDs = append(userIDs, t.UserID)
	}

	usersByID := make(map[primitive.ObjectID]models.User, len(userIDs))
	if len(userIDs) > 0 {
		cursor, err := db.Collection("users").Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
		if err != nil {
			return nil, err
		}
		var users []models.User
		if err := cursor.All(ctx, &users); err != nil {
			return nil, err
		}
		for _, u := range users {
			usersByID[u.ID] = u
		}
	}

	data := make([]gin.H, 0, len(transactions))
	for _, t := range transactions {
		username := "Unknown"
		userEmail := ""
		if user, ok := usersByID[t.UserID]; ok {
			username = user.Username
			userEmail = user.Email
		}
		productName := "Unknown"
		category := ""
		if product, ok := products[t.ProductID]; ok {
			productName = product.Name
			category = product.Category
		}
		data = append(data, gin.H{
			"id":         t.ID.Hex(),
			"user_id":    t.UserID.Hex(),
			"user":       username,
			"user_email": userEmail,
			"product_id": t.ProductID.Hex(),
			"product":    productName,
			"category":   category,
			"amount":     t.Amount,
			"date":       t.TransactionDate,
			"status":     "completed",
		})
	}
	return data, nil
}
