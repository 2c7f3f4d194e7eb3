// Package main runs the Taalam question review HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/taalam/backend/config"
	"github.com/taalam/backend/internal/auth"
	"github.com/taalam/backend/internal/catalog"
	"github.com/taalam/backend/internal/middleware"
	"github.com/taalam/backend/internal/models"
	"github.com/taalam/backend/internal/notifications"
	"github.com/taalam/backend/internal/realtime"
	"github.com/taalam/backend/internal/variants"
	"github.com/taalam/backend/internal/workflow"
	"github.com/taalam/backend/pkg/database"
	"github.com/taalam/backend/pkg/queue"
	"github.com/taalam/backend/pkg/redis"
	"github.com/taalam/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Catalog (exams, subjects, topics); also classifies new questions.
	catalogRepo := catalog.NewRepository(pool)
	catalogHandler := catalog.NewHandler(catalogRepo)

	// Notifications
	notificationRepo := notifications.NewRepository(pool)
	dispatcher := notifications.NewDispatcher(hub, jobQueue, logger)
	notificationHandler := notifications.NewHandler(notificationRepo)

	// Workflow engine: the review state machine over questions.
	store := workflow.NewPGStore(pool)
	flaggable := make([]models.Status, 0, len(cfg.Workflow.FlaggableStatuses))
	for _, s := range cfg.Workflow.FlaggableStatuses {
		st := models.Status(s)
		if !models.ValidStatus(st) {
			logger.Fatal("invalid flaggable status in config", zap.String("status", s))
		}
		flaggable = append(flaggable, st)
	}
	engine := workflow.NewEngine(store, catalogRepo, dispatcher, flaggable, logger)
	workflowHandler := workflow.NewHandler(engine)

	// Variant drafts
	variantRepo := variants.NewRepository(pool)
	variantManager := variants.NewManager(variantRepo, store, logger)
	variantHandler := variants.NewHandler(variantManager)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (admin only; for processor assignment pickers)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Catalog
		api.POST("/exams", middleware.RequireRole("admin"), catalogHandler.CreateExam)
		api.GET("/exams", catalogHandler.ListExams)
		api.PATCH("/exams/:id", middleware.RequireRole("admin"), catalogHandler.UpdateExam)
		api.DELETE("/exams/:id", middleware.RequireRole("admin"), catalogHandler.DeleteExam)
		api.POST("/subjects", middleware.RequireRole("admin"), catalogHandler.CreateSubject)
		api.GET("/subjects", catalogHandler.ListSubjects)
		api.DELETE("/subjects/:id", middleware.RequireRole("admin"), catalogHandler.DeleteSubject)
		api.POST("/topics", middleware.RequireRole("admin"), catalogHandler.CreateTopic)
		api.GET("/topics", catalogHandler.ListTopics)
		api.DELETE("/topics/:id", middleware.RequireRole("admin"), catalogHandler.DeleteTopic)

		// Questions (role checks are enforced per-transition by the engine)
		api.POST("/questions", middleware.RequireRole("admin", "gatherer"), workflowHandler.Create)
		api.GET("/questions", workflowHandler.List)
		api.GET("/questions/:id", workflowHandler.Get)
		api.PATCH("/questions/:id", workflowHandler.Update)
		api.DELETE("/questions/:id", middleware.RequireRole("admin"), workflowHandler.Delete)
		api.POST("/questions/:id/advance", workflowHandler.Advance)
		api.POST("/questions/:id/reject", workflowHandler.Reject)
		api.POST("/questions/:id/send-back", workflowHandler.SendBack)
		api.POST("/questions/:id/flag", workflowHandler.Flag)
		api.POST("/questions/:id/flag/resolve", workflowHandler.ResolveFlag)
		api.GET("/questions/:id/history", workflowHandler.History)

		// Variant drafts
		api.POST("/questions/:id/variants", variantHandler.Create)
		api.GET("/questions/:id/variants", variantHandler.List)
		api.POST("/questions/:id/variants/submit", workflowHandler.SubmitVariants)
		api.PATCH("/variants/:id", variantHandler.Update)
		api.DELETE("/variants/:id", variantHandler.Delete)
		api.POST("/variants/:id/flag", variantHandler.Flag)
		api.POST("/variants/:id/flag/resolve", variantHandler.ResolveFlag)

		// Notifications
		api.GET("/notifications", notificationHandler.List)
		api.PATCH("/notifications/:id/read", notificationHandler.MarkRead)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
