package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nexus-org/nexus-backend/internal/config"
	"github.com/nexus-org/nexus-backend/internal/domain"
	"github.com/nexus-org/nexus-backend/internal/handler"
	"github.com/nexus-org/nexus-backend/internal/middleware"
	"github.com/nexus-org/nexus-backend/internal/repository"
	"github.com/nexus-org/nexus-backend/internal/routes"
	"github.com/nexus-org/nexus-backend/internal/service"
	"github.com/nexus-org/nexus-backend/internal/ws"
	pkgcache "github.com/nexus-org/nexus-backend/pkg/cache"
	"github.com/nexus-org/nexus-backend/pkg/i18n"
	"github.com/nexus-org/nexus-backend/pkg/jwt"
	pkglogger "github.com/nexus-org/nexus-backend/pkg/logger"
	pkgredis "github.com/nexus-org/nexus-backend/pkg/redis"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.Init(env)
	pkglogger.GetLogger().Info().
		Str("env", env).
		Strs("env_files", dotenvFiles).
		Msg("starting nexus-backend")

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	pkglogger.GetLogger().Info().Msg("connected to MySQL")

	if err := db.AutoMigrate(
		&domain.Member{},
		&domain.OrgSetting{},
		&domain.Conversation{},
		&domain.ConversationParticipant{},
		&domain.Message{},
	); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	redisClient := initRedis(cfg)

	cacheService := pkgcache.NewService(redisClient)

	// WebSocket hub and the event path from services to connected clients
	wsHub := ws.NewHub(redisClient)
	go wsHub.Run()
	defer wsHub.Stop()
	publisher := ws.NewPublisher(wsHub)

	jwtManager := jwt.NewManager(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	// i18n bundle: built-in messages, overridable from an i18n/ directory
	i18nBundle := i18n.NewBundle(i18n.LocaleEn)
	for locale, msgs := range i18n.DefaultMessages() {
		i18nBundle.LoadMessages(locale, msgs)
	}
	if _, err := os.Stat("i18n"); err == nil {
		if err := i18nBundle.LoadDir("i18n"); err != nil {
			pkglogger.GetLogger().Warn().Err(err).Msg("i18n LoadDir failed")
		}
	}

	// Repositories
	memberRepo := repository.NewMemberRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	convRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// Services
	settingsService := service.NewSettingsService(settingRepo)
	conversationService := service.NewConversationService(convRepo, messageRepo, memberRepo, settingsService, cacheService, publisher)
	messageService := service.NewMessageService(messageRepo, convRepo, memberRepo, settingsService, cacheService, publisher)

	// Handlers
	conversationHandler := handler.NewConversationHandler(conversationService, i18nBundle)
	messageHandler := handler.NewMessageHandler(messageService, i18nBundle)
	wsHandler := handler.NewWSHandler(wsHub, joinOrigins(cfg.CORS.AllowedOrigins))

	if env != "development" && env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	allowedOrigins := cfg.CORS.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining"},
		MaxAge:           86400,
	}))

	router.Use(middleware.I18n())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())
	if redisClient != nil {
		router.Use(middleware.RateLimit(redisClient, middleware.DefaultRateLimitConfig()))
	}

	routes.Setup(router, conversationHandler, messageHandler, wsHandler, jwtManager, redisClient)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	pkglogger.GetLogger().Info().Str("addr", addr).Msg("listening")
	if err := router.Run(addr); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}
	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	return db, nil
}

// initRedis connects when enabled; the API degrades gracefully without it
// (no cross-instance events, no IP rate limit, no unread cache).
func initRedis(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	client, err := pkgredis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	if err != nil {
		pkglogger.GetLogger().Warn().Err(err).Msg("redis unavailable, continuing without it")
		return nil
	}
	pkglogger.GetLogger().Info().Msg("connected to Redis")
	return client
}

func joinOrigins(origins []string) string {
	out := ""
	for i, o := range origins {
		if i > 0 {
			out += ","
		}
		out += o
	}
	return out
}
