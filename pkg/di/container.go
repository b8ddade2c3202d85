// Package di wires the routing engine's dependencies together.
package di

import (
	"context"
	"time"

	"grassroot-chatbot/backend/conversation/repository"
	"grassroot-chatbot/backend/conversation/service"
	"grassroot-chatbot/backend/conversation/ws"
	"grassroot-chatbot/backend/nlu"
	"grassroot-chatbot/backend/pkg/cache"
	"grassroot-chatbot/backend/pkg/config"
	"grassroot-chatbot/backend/pkg/deadletter"
	"grassroot-chatbot/backend/pkg/health"
	"grassroot-chatbot/backend/pkg/jwt"
	"grassroot-chatbot/backend/pkg/logger"
	"grassroot-chatbot/backend/pkg/secrets"
	"grassroot-chatbot/backend/platform"
	"grassroot-chatbot/backend/shared/observability"
	sharedredis "grassroot-chatbot/backend/shared/redis"
	"grassroot-chatbot/backend/users"

	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	DB          *gorm.DB
	Config      *config.Config
	Logger      *logger.Logger
	JWTService  *jwt.Service
	Metrics     *observability.Metrics
	Turns       repository.TurnRepository
	NLU         *nlu.Client
	Platform    *platform.Client
	Users       *users.Client
	Locker      service.SenderLocker
	DeadLetter  deadletter.Publisher
	Recorder    *service.TurnRecorder
	Router      *service.DialogueRouter
	SafeNet     *service.SafeNet
	Console     *ws.Console
	Health      *health.Checker
	redisClient *sharedredis.RedisClient
}

// New creates a new dependency injection container
func New(db *gorm.DB, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{
		DB:      db,
		Config:  cfg,
		Logger:  log,
		Metrics: observability.NewMetrics(),
	}

	c.JWTService = jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)
	c.Turns = repository.NewGormTurnRepository(db, cfg.Conversation.FreshnessWindow)

	// secrets for the collaborator tokens, falling back to env
	ctx := context.Background()
	if err := secrets.Init(log); err != nil {
		log.Warn("secrets manager unavailable, using environment fallback", "error", err)
	}
	platformToken := secrets.GetSecretWithDefault(ctx, "PLATFORM_TOKEN", "")
	usersToken := secrets.GetSecretWithDefault(ctx, "USERS_TOKEN", platformToken)

	c.NLU = nlu.NewClient(cfg.Services.NLUBaseURL, cfg.Services.CallTimeout, log)
	c.Platform = platform.NewClient(cfg.Services.PlatformBaseURL, platformToken, cfg.Services.CallTimeout, log)
	c.Users = users.NewClient(cfg.Services.UsersBaseURL, usersToken, cfg.Services.CallTimeout, cache.NewCache(), log)

	if cfg.Redis.Enabled {
		c.redisClient = sharedredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.LockTTL)
		c.Locker = c.redisClient
	} else {
		log.Info("no redis configured, using in-process turn lease")
		c.Locker = service.NewMutexSenderLocker()
	}

	if cfg.DeadLetter.Enabled {
		pub, err := deadletter.New(cfg.DeadLetter.URL, cfg.DeadLetter.Exchange, cfg.DeadLetter.RoutingKey, log)
		if err != nil {
			log.Warn("dead-letter broker unavailable, failures will only be logged", "error", err)
			c.DeadLetter = deadletter.NewFallback(log)
		} else {
			c.DeadLetter = pub
		}
	} else {
		c.DeadLetter = deadletter.NewFallback(log)
	}

	routerCfg := service.RouterConfig{
		RestartKeyword:     cfg.Conversation.RestartKeyword,
		RestartConfidence:  cfg.Conversation.RestartConfidence,
		MenuMatchThreshold: cfg.Conversation.MenuMatchThreshold,
		PayloadDomains:     cfg.Conversation.PayloadDomains,
		TriggerPhrases:     cfg.Conversation.TriggerPhrases,
	}
	c.Recorder = service.NewTurnRecorder(c.Turns, cfg.Conversation.TurnTTL)
	c.Router = service.NewDialogueRouter(c.Turns, c.NLU, c.Platform, c.Users, routerCfg, c.Metrics, log)
	c.SafeNet = service.NewSafeNet(c.Router, c.Recorder, c.DeadLetter, c.Metrics, log)
	c.Console = ws.NewConsole(log)
	c.Console.SetTurnHandler(c.SafeNet.Handle)

	c.Health = health.NewChecker(log, 30*time.Second)
	c.Health.RegisterDatabaseCheck(func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	})
	c.Health.RegisterAPICheck("nlu", cfg.Services.NLUBaseURL+"/status", nil)
	c.Health.RegisterAPICheck("platform", cfg.Services.PlatformBaseURL+"/status", nil)
	c.Health.Start()

	return c, nil
}

// Close releases the container's long-lived connections.
func (c *Container) Close() {
	if c.redisClient != nil {
		_ = c.redisClient.Close()
	}
	if c.DeadLetter != nil {
		_ = c.DeadLetter.Close()
	}
}
