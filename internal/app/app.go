package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/xiongtingping/wenpai-sub001/config"
	"github.com/xiongtingping/wenpai-sub001/internal/gateway"
	"github.com/xiongtingping/wenpai-sub001/internal/handlers"
	"github.com/xiongtingping/wenpai-sub001/internal/metrics"
	"github.com/xiongtingping/wenpai-sub001/internal/models"
	"github.com/xiongtingping/wenpai-sub001/internal/monitor"
	"github.com/xiongtingping/wenpai-sub001/internal/notify"
	"github.com/xiongtingping/wenpai-sub001/internal/publisher"
	"github.com/xiongtingping/wenpai-sub001/internal/recovery"
	"github.com/xiongtingping/wenpai-sub001/internal/repository/postgres"
	"github.com/xiongtingping/wenpai-sub001/internal/scheduler"
	"github.com/xiongtingping/wenpai-sub001/internal/service"
	"github.com/xiongtingping/wenpai-sub001/internal/subscriber"
)

type App struct {
	config  *config.Config
	Router  *gin.Engine
	service *service.MonitorService
}

func (a *App) Initialize(cfg *config.Config) {
	a.config = cfg

	metrics.RegisterMetrics()

	db, err := cfg.DB.GormConnect()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.StatusRecord{}); err != nil {
		log.Fatalf("failed to auto migrate: %v", err)
	}

	statusRepo := postgres.New(db)
	publishTopics := strings.Split(cfg.Kafka.PublishTopics, ",")
	eventPublisher := publisher.NewKafkaPublisher(cfg.Kafka.Brokers, publishTopics, cfg.Kafka.GetRetryConfig())
	notifier := notify.NewKafkaNotifier(eventPublisher)
	gatewayClient := gateway.NewHTTPClient(cfg.Gateway.URL, cfg.Gateway.CallTimeout)
	coordinator := recovery.New(statusRepo, gatewayClient, cfg.Gateway.CallTimeout)

	schedCfg := scheduler.Config{
		BaseInterval:   cfg.Monitor.BaseInterval,
		BackoffFactor:  cfg.Monitor.BackoffFactor,
		MaxInterval:    cfg.Monitor.MaxInterval,
		SettleInterval: cfg.Monitor.SettleInterval,
		SettlePolls:    cfg.Monitor.SettlePolls,
	}
	defaults := monitor.Config{
		AutoRefresh:         cfg.Monitor.AutoRefresh,
		MaxRetries:          cfg.Monitor.MaxRetries,
		EnableNotifications: cfg.Monitor.EnableNotifications,
		EnableSound:         cfg.Monitor.EnableSound,
		CallTimeout:         cfg.Gateway.CallTimeout,
	}

	a.service = service.NewMonitorService(statusRepo, gatewayClient, notifier, eventPublisher, coordinator, schedCfg, defaults)
	monitorHandler := handlers.NewMonitorHandler(a.service)

	a.Router = gin.Default()
	a.Router.Use(gin.Recovery())
	a.RegisterRoutes(monitorHandler)

	a.initSubscribers(monitorHandler)
	a.resumePersisted()
}

func (a *App) Run() {
	err := a.Router.Run(fmt.Sprintf(":%s", a.config.APP.PORT))
	if err != nil {
		panic(err)
	}
}

func (a *App) initSubscribers(monitorHandler *handlers.MonitorHandler) {
	brokers := strings.Split(a.config.Kafka.Brokers, ",")
	topics := strings.Split(a.config.Kafka.SubscriberTopics, ",")
	groupID := a.config.Kafka.MonitorConsumerGroup

	consumer := subscriber.NewMultiTopicConsumer(brokers, topics, groupID, a.config.GetRetryConfig())

	ctx := context.Background()
	go consumer.Listen(ctx, func(topic string, value []byte) error {
		log.Printf("received message topic=%s value=%s", topic, string(value))
		err := monitorHandler.HandleEvents(context.Background(), topic, value)
		if err != nil {
			logrus.Error(err.Error())
		}
		return err
	})
}

// resumePersisted restarts a monitor for every in-flight checkout found in
// the store, so a process restart does not lose track of pending payments.
func (a *App) resumePersisted() {
	resumed, err := a.service.ResumeAll(context.Background())
	if err != nil {
		logrus.Errorf("error resuming persisted checkouts: %s", err.Error())
		return
	}
	if len(resumed) > 0 {
		logrus.Infof("resumed monitoring for %d checkout(s)", len(resumed))
	}
}
