package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"echochat-backend/internal/auth"
	"echochat-backend/internal/chat"
	"echochat-backend/internal/config"
	"echochat-backend/internal/events"
	"echochat-backend/internal/logging"
	"echochat-backend/internal/middleware"
	"echochat-backend/internal/presence"
	"echochat-backend/internal/realtime"
	"echochat-backend/internal/store"
	"echochat-backend/internal/upload"
	"echochat-backend/internal/user"
	"echochat-backend/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	config.LoadConfig(".env")
	if config.Cfg == nil {
		log.Fatal("Error: Configuration not loaded.")
	}

	logger, err := logging.New(config.Cfg.Environment)
	if err != nil {
		log.Fatalf("Unable to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Infow("echochat backend starting", "port", config.Cfg.ServerPort)

	ctx := context.Background()
	db, err := store.Connect(ctx, config.Cfg.MongoURI, config.Cfg.MongoDatabase)
	if err != nil {
		logger.Fatalw("unable to connect to mongo", "error", err)
	}
	defer db.Close(context.Background())
	if err := db.EnsureIndexes(ctx); err != nil {
		logger.Fatalw("unable to create indexes", "error", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Cfg.RedisAddr,
		Password: config.Cfg.RedisPassword,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatalw("unable to connect to redis", "error", err)
	}
	defer redisClient.Close()

	userStore := store.NewMongoUserStore(db)
	chatStore := store.NewMongoChatStore(db)
	messageStore := store.NewMongoMessageStore(db)
	typingStore := store.NewMongoTypingStore(db)

	bus := realtime.NewRedisBus(redisClient, logger)
	manager := realtime.NewManager(chatStore, messageStore, typingStore, bus, logger)

	var uploader upload.Uploader
	if config.Cfg.S3Bucket != "" {
		s3Uploader, err := upload.NewS3Uploader(ctx, config.Cfg.S3Bucket, config.Cfg.S3Region)
		if err != nil {
			logger.Fatalw("unable to initialize s3 uploader", "error", err)
		}
		uploader = s3Uploader
	}

	var publisher events.Publisher
	if len(config.Cfg.KafkaBrokers) > 0 && config.Cfg.KafkaBrokers[0] != "" {
		kafkaPublisher := events.NewKafkaPublisher(config.Cfg.KafkaBrokers, config.Cfg.KafkaTopic, logger)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	chatService := chat.NewChatService(chatStore, userStore, bus, logger)
	messageService := chat.NewMessageService(messageStore, chatStore, bus, uploader, publisher, logger)
	presenceCoordinator := presence.NewCoordinator(userStore, typingStore, chatStore, bus, logger)

	wsHub := websocket.NewHub(manager, messageService, presenceCoordinator, config.Cfg.ChatListLimit, config.Cfg.MessageLimit, logger)
	go wsHub.Run()

	authHandler := auth.NewAuthHandler(userStore, logger)
	userHandler := user.NewUserHandler(userStore, logger)
	chatHandler := chat.NewHandler(chatService, messageService, presenceCoordinator, userStore, logger)
	wsHandler := websocket.NewWSHandler(wsHub, userStore, logger)

	if config.Cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = config.Cfg.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Upgrade", "Connection"}
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	r.GET("/ws", wsHandler.HandleWebSocketConnection)

	apiV1 := r.Group("/api/v1")
	{
		publicAuthRoutes := apiV1.Group("/auth")
		{
			publicAuthRoutes.POST("/register", authHandler.Register)
			publicAuthRoutes.POST("/login", authHandler.Login)
		}

		protected := apiV1.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.GET("/auth/me", authHandler.GetMe)
			protected.GET("/users/:id", userHandler.GetUserByID)
			protected.GET("/users", userHandler.SearchUsers)
			chatHandler.RegisterRoutes(protected)
		}
	}

	srv := &http.Server{
		Addr:    ":" + config.Cfg.ServerPort,
		Handler: r,
	}

	go func() {
		logger.Infow("listening and serving HTTP", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infow("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalw("server forced to shutdown", "error", err)
	}

	logger.Infow("server exiting")
}
