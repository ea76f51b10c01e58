package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"backend/internal/config"
	"backend/internal/database"
	"backend/internal/handlers"
	"backend/internal/middleware"
	"backend/internal/ml"
)

func main() {
	config.Load()

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(config.AppEnv.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureUserIndexes(db); err != nil {
		log.Printf("⚠️ user index warning: %v", err)
	}
	if err := database.EnsureBehaviorIndexes(db); err != nil {
		log.Printf("⚠️ behavior index warning: %v", err)
	}
	if err := database.EnsureTransactionIndexes(db); err != nil {
		log.Printf("⚠️ transaction index warning: %v", err)
	}
	if err := database.EnsureRecommendationIndexes(db); err != nil {
		log.Printf("⚠️ recommendation index warning: %v", err)
	}

	mlClient := ml.NewClient(config.AppEnv.MLBaseURL, config.AppEnv.MLTimeout)
	refresher := ml.NewRefresher(db, mlClient, config.AppEnv.RefreshWorkers, config.AppEnv.RefreshQueueSize)

	r := gin.Default()

	r.POST("/auth/register", handlers.Register(db, refresher, config.AppEnv.JWTSecret, config.AppEnv.AccessTokenTTL, config.AppEnv.SignupBalance))
	r.POST("/auth/login", handlers.Login(db, config.AppEnv.JWTSecret, config.AppEnv.AccessTokenTTL))

	r.GET("/products", handlers.GetProducts(db))
	r.GET("/products/:id", handlers.GetProductByID(db))
	r.POST("/products", middleware.AdminAuth(config.AppEnv.JWTSecret), handlers.CreateProduct(db))
	r.GET("/ml/health", handlers.MLHealth(mlClient, config.AppEnv.MLHealthTimeout))

	user := r.Group("/")
	user.Use(middleware.UserAuth(config.AppEnv.JWTSecret))
	{
		user.POST("/transactions", handlers.CreateTransaction(db, refresher))
		user.GET("/transactions", handlers.GetMyTransactions(db))

		user.GET("/recommendations", handlers.GetRecommendations(db))
		user.POST("/recommendations/generate", handlers.GenerateRecommendations(db, refresher))
		user.GET("/recommendations/check-and-generate", handlers.CheckAndGenerate(db, refresher))

		user.GET("/users/profile", handlers.GetProfile(db))
		user.PUT("/users/profile", handlers.UpdateProfile(db))
		user.POST("/users/topup", handlers.TopUp(db))
	}

	admin := r.Group("/admin")
	admin.Use(middleware.AdminAuth(config.AppEnv.JWTSecret))
	{
		admin.GET("/dashboard/stats", handlers.DashboardStats(db))
		admin.GET("/dashboard/sales-chart", handlers.SalesChart(db))
		admin.GET("/dashboard/top-products", handlers.TopProducts(db))
		admin.GET("/dashboard/recent-transactions", handlers.RecentTransactions(db))

		admin.GET("/users", handlers.AdminGetUsers(db))
		admin.PUT("/users/:id", handlers.AdminUpdateUser(db))
		admin.DELETE("/users/:id", handlers.AdminDeleteUser(db))

		admin.GET("/transactions", handlers.AdminGetTransactions(db))
		admin.GET("/reports/generate", handlers.AdminGenerateReport(db))

		admin.PUT("/products/:id", handlers.UpdateProduct(db))
		admin.DELETE("/products/:id", handlers.DeleteProduct(db))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	r.Run(":" + port)
}
