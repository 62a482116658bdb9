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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yourusername/gameshow-api/internal/config"
	"github.com/yourusername/gameshow-api/internal/handler"
	"github.com/yourusername/gameshow-api/internal/middleware"
	extRepo "github.com/yourusername/gameshow-api/internal/repository/external"
	pgRepo "github.com/yourusername/gameshow-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/gameshow-api/internal/repository/redis"
	"github.com/yourusername/gameshow-api/internal/service"
	"github.com/yourusername/gameshow-api/internal/service/sessionmanager"
	ws "github.com/yourusername/gameshow-api/internal/websocket"
	"github.com/yourusername/gameshow-api/pkg/auth"
	"github.com/yourusername/gameshow-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis с использованием унифицированной конфигурации
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	gameRepo := pgRepo.NewGameRepo(db)
	finalizationRepo := pgRepo.NewFinalizationRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// PubSub для каналов сессий: Redis позволяет горизонтально масштабировать
	// API, при недоступности провайдера остаемся на внутрипроцессной шине
	var pubSubProvider ws.PubSubProvider
	redisProvider, errProv := ws.NewRedisPubSub(redisClient)
	if errProv != nil {
		log.Printf("Ошибка при создании Redis PubSub провайдера: %v. Используется внутрипроцессная шина.", errProv)
		pubSubProvider = ws.NewMemoryPubSub()
	} else {
		log.Println("Redis PubSub провайдер успешно инициализирован")
		pubSubProvider = redisProvider
	}

	// Инициализируем JWT сервис
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs, cfg.JWT.WSTicketExpirySec)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// Издатель записей финализации во внешнее хранилище
	finalizationPublisher := extRepo.NewHTTPFinalizationPublisher(cfg.Finalization.Endpoint, cfg.Finalization.APIKey)

	// Конфигурация движка сессий из настроек приложения
	smConfig := sessionmanager.DefaultConfig()
	if cfg.Game.BasePoints > 0 {
		smConfig.BasePoints = cfg.Game.BasePoints
	}
	if cfg.Game.PodiumSize > 0 {
		smConfig.PodiumSize = cfg.Game.PodiumSize
	}
	if cfg.Finalization.MaxRetries > 0 {
		smConfig.MaxRetries = cfg.Finalization.MaxRetries
	}

	// Клиент каналов сессий для исходящих сообщений движка
	channels := ws.NewChannelClient(pubSubProvider)
	if err := channels.Connect(
		func() { log.Println("Каналы сессий подключены") },
		func(err error) { log.Printf("Ошибка каналов сессий: %v", err) },
	); err != nil {
		log.Printf("Failed to connect session channels: %v", err)
		os.Exit(1)
	}

	// Инициализируем сервисы
	sessionService := service.NewSessionService(gameRepo, finalizationRepo, finalizationPublisher, cacheRepo, channels, smConfig)
	gameService := service.NewGameService(gameRepo)

	// Хаб WebSocket: входящие кадры идут в сервис сессий,
	// окончательные отключения тоже
	messageRouter := handler.NewMessageRouter(sessionService)
	hub := ws.NewHub(pubSubProvider, messageRouter.Route)
	hub.SetDisconnectHandler(messageRouter.HandleDisconnect)
	go hub.Run()

	// Инициализируем обработчики
	gameHandler := handler.NewGameHandler(gameService)
	sessionHandler := handler.NewSessionHandler(sessionService, finalizationRepo, jwtService)
	wsHandler := handler.NewWSHandler(hub, jwtService)

	// Инициализируем middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Инициализируем роутер Gin
	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode

	// Настройка доверенных прокси для корректной работы c.ClientIP()
	// В production (GIN_MODE=release): не доверяем прокси (защита от IP spoofing)
	// В development: доверяем localhost
	// При деплое на VM с load balancer: добавьте IP балансировщика в список
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:8000", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		// Определения игр (только для аутентифицированных хостов)
		games := api.Group("/games")
		games.Use(authMiddleware.RequireAuth())
		{
			games.POST("", gameHandler.CreateGame)
			games.GET("", gameHandler.ListGames)

			gameWithID := games.Group("/:id")
			gameWithID.Use(middleware.ExtractUintParam("id", "gameID"))
			{
				gameWithID.GET("", gameHandler.GetGame)
				gameWithID.PUT("", gameHandler.UpdateGame)
				gameWithID.DELETE("", gameHandler.DeleteGame)
			}
		}

		// Живые сессии
		sessions := api.Group("/sessions")
		{
			// Публичные маршруты игроков, защищены rate limiter'ом
			sessions.POST("/resolve", rateLimiter.Limit(middleware.StrictPinRateLimitConfig()), sessionHandler.ResolvePIN)
			sessions.POST("/:id/ticket", rateLimiter.Limit(middleware.DefaultJoinRateLimitConfig()), sessionHandler.IssuePlayerTicket)

			// Маршруты хоста
			hosted := sessions.Group("")
			hosted.Use(authMiddleware.RequireAuth())
			{
				hosted.POST("", sessionHandler.CreateSession)
				hosted.GET("/active", sessionHandler.ListActiveSessions)
				hosted.GET("/finalized", sessionHandler.ListFinalizedSessions)
				hosted.GET("/finalized/:sid", sessionHandler.GetFinalizedSession)
				hosted.GET("/finalized/:sid/export", sessionHandler.ExportFinalizedSession)

				hosted.GET("/:id", sessionHandler.GetSession)
				hosted.POST("/:id/host-ticket", sessionHandler.IssueHostTicket)
				hosted.POST("/:id/start", sessionHandler.StartSession)
				hosted.POST("/:id/advance", sessionHandler.AdvanceSession)
				hosted.POST("/:id/players/:cid/kick", sessionHandler.KickPlayer)
				hosted.POST("/:id/abort", sessionHandler.AbortSession)
				hosted.POST("/:id/lobby", sessionHandler.ReturnToLobby)
				hosted.POST("/:id/finalization/retry", sessionHandler.RetryFinalization)
				hosted.POST("/:id/background", sessionHandler.ChangeBackground)
				hosted.POST("/:id/auto-start", sessionHandler.SetAutoStart)
			}
		}
	}

	// WebSocket маршрут
	router.GET("/ws", wsHandler.HandleConnection)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	// После получения сигнала SIGINT или SIGTERM начинаем корректное завершение
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Останавливаем хаб и каналы сессий
	hub.Close()
	channels.Disconnect()

	if err := pubSubProvider.Close(); err != nil {
		log.Printf("Error closing PubSub provider: %v", err)
	}

	// Создаем контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
