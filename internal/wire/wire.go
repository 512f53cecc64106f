package wire

import (
	"Parley/internal/api"
	"Parley/internal/api/config"
	"Parley/internal/api/handler"
	"Parley/internal/job"
	"Parley/internal/pkg/cron"
	"Parley/internal/pkg/es"
	"Parley/internal/pkg/kafka"
	"Parley/internal/pkg/minio"
	"Parley/internal/pkg/mongo"
	"Parley/internal/pkg/redis"
	"Parley/internal/presence"
	"Parley/internal/repository"
	"Parley/internal/service"
	log "log/slog"
	"time"

	"github.com/gin-gonic/gin"
	mongodb "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router  *gin.Engine
	DB      *gorm.DB
	CronMgr *cron.Manager
	// KafkaManager 未配置 brokers 时为 nil
	KafkaManager *kafka.ConsumerManager
	// IdentityProducer 未配置 brokers 时为 nil
	IdentityProducer *kafka.IdentityProducer
}

func BuildApplication(db *gorm.DB, mongoDB *mongodb.Database, cfg *config.Config) (*ApplicationContainer, error) {
	policy := presence.NewPolicy(cfg.Presence.OnlineThreshold, cfg.Presence.TypingThreshold)

	userRepo := repository.NewUserRepo(db)
	convRepo := repository.NewConversationRepo(db)
	messageRepo := mongo.NewMessageRepo(mongoDB)

	rdb := redis.GetRdbClient()
	publisher := redis.NewPublisher(rdb)
	typingRepo := redis.NewTypingRepo(rdb)
	sessions := redis.NewSessionCounter(rdb)

	var userIndex service.UserIndex
	if es.Enabled() {
		userIndex = es.NewUserRepo(es.Client, es.UserIndex)
	} else {
		log.Info("Elasticsearch not configured, user search falls back to database")
	}

	userService := service.NewUserService(userRepo, convRepo, userIndex, publisher, policy)
	imService := service.NewIMService(userRepo, convRepo, messageRepo, publisher, policy)
	typingService := service.NewTypingService(userRepo, convRepo, typingRepo, publisher, policy)
	mediaService := service.NewMediaService(minio.NewStorage())

	container := &ApplicationContainer{DB: db}

	identitySink := service.NewDirectIdentitySink(userService)
	if cfg.KafkaEnabled() {
		producer, err := kafka.NewIdentityProducer(cfg)
		if err != nil {
			return nil, err
		}
		kafkaMgr, err := kafka.NewConsumerManager(cfg, userService)
		if err != nil {
			_ = producer.Close()
			return nil, err
		}
		identitySink = producer
		container.IdentityProducer = producer
		container.KafkaManager = kafkaMgr
	} else {
		log.Info("Kafka not configured, identity events are applied directly")
	}

	webhookHandler, err := handler.NewWebhookHandler(cfg.Webhook.Secret, identitySink)
	if err != nil {
		return nil, err
	}

	handlers := &api.HandlersGroup{
		UserHandler:    handler.NewUserHandler(userService),
		IMHandler:      handler.NewIMHandler(imService, typingService),
		WSHandler:      handler.NewWsHandler(userService, typingService, sessions, time.Duration(cfg.Presence.HeartbeatInterval)*time.Millisecond),
		WebhookHandler: webhookHandler,
		MediaHandler:   handler.NewMediaHandler(mediaService),
	}
	container.Router = api.SetupRouter(handlers, cfg.Server.AllowedOrigins)

	presenceSweepJob := job.NewPresenceSweepJob(userService)
	container.CronMgr = cron.NewCronManager(presenceSweepJob, cfg.Presence.SweepSpec)

	return container, nil
}
