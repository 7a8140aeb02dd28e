package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/yukikurage/task-sync/internal/config"
	"github.com/yukikurage/task-sync/internal/constants"
	"github.com/yukikurage/task-sync/internal/database"
	"github.com/yukikurage/task-sync/internal/gateway"
	"github.com/yukikurage/task-sync/internal/handlers"
	"github.com/yukikurage/task-sync/internal/middleware"
	"github.com/yukikurage/task-sync/internal/repository"
	"github.com/yukikurage/task-sync/internal/services"
	"github.com/yukikurage/task-sync/internal/tasksync"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	pflag.Parse()

	// Load configuration
	cfg := config.Load()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Gin router
	r := gin.Default()

	// Change notifications and sessions share Redis when it is enabled
	var (
		notifier    gateway.Notifier
		store       sessions.Store
		redisClient *redis.Client
	)
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
		})
		notifier = gateway.NewRedisNotifier(redisClient, cfg.SyncChannelPrefix, logger)

		var err error
		store, err = redisStore.NewStore(
			10,              // Redis pool size
			"tcp",           // network type
			cfg.RedisAddr(), // Redis address from config
			cfg.RedisPassword,
			[]byte(cfg.SessionSecret), // authentication key
		)
		if err != nil {
			log.Fatalf("Failed to create Redis store: %v", err)
		}
	} else {
		log.Println("Redis disabled, using in-process notifications and cookie sessions")
		notifier = gateway.NewLocalNotifier()
		store = cookie.NewStore([]byte(cfg.SessionSecret))
	}

	// Configure session options based on environment
	isProduction := cfg.GinMode == "release"
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   constants.SessionMaxAge,
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Initialize sync engines
	taskGateway := gateway.NewStoreGateway(repository.NewTaskRepository(database.GetDB()), notifier, logger)
	syncService := services.NewSyncService(taskGateway, tasksync.Config{Logger: logger})

	// Engines of sessions that expired without a logout are stopped when idle
	evictionCtx, stopEviction := context.WithCancel(context.Background())
	go syncService.RunEviction(evictionCtx, constants.EngineEvictionInterval, constants.EngineIdleTimeout)

	// Initialize AI service
	var generator services.TaskGenerator
	if cfg.OpenAIAPIKey != "" {
		generator = services.NewAIService(cfg.OpenAIAPIKey)
	}

	authService := services.NewAuthService(repository.NewUserRepository(database.GetDB()))
	taskService := services.NewTaskService(syncService, generator)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, syncService)
	taskHandler := handlers.NewTaskHandler(taskService)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"message":        "Task Sync API is running",
			"active_engines": syncService.ActiveCount(),
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
		}

		// Task routes (protected)
		taskAccess := middleware.RequireTaskAccess(taskService)
		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth())
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.POST("/reorder", taskHandler.ReorderTasks)
			tasks.POST("/generate", taskHandler.GenerateTasks)
			tasks.GET("/stream", taskHandler.StreamTasks)
			tasks.GET("/:id", taskAccess, taskHandler.GetTask)
			tasks.PATCH("/:id", taskAccess, taskHandler.UpdateTask)
			tasks.PATCH("/:id/status", taskAccess, taskHandler.ChangeStatus)
			tasks.DELETE("/:id", taskAccess, taskHandler.DeleteTask)
		}
	}

	// Event streams never go idle, so their contexts end when shutdown starts
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	server.RegisterOnShutdown(cancelRequests)

	// Start server
	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Stop accepting requests first, then engines, then their backing stores
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				if err := server.Shutdown(ctx); err != nil {
					return err
				}
				stopEviction()
				syncService.Close()
				if redisClient != nil {
					if err := redisClient.Close(); err != nil {
						return err
					}
				}
				return database.Close()
			},
		},
	)

	exitCode := <-wait
	log.Printf("Server exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		log.Printf("Unknown log level %q, using info", level)
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
