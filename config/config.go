package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func New() (*Config, error) {
	var Config Config
	err := godotenv.Load(".env")
	if err != nil {
		logrus.Error("Error can't get the environment variables by file")
	}
	if err := env.Parse(&Config); err != nil {
		logrus.Fatalf("Error initializing: %s", err.Error())
		os.Exit(1)
	}
	return &Config, nil
}

type Config struct {
	APP
	DB
	Kafka
	Gateway
	Monitor
}

type APP struct {
	PORT string `env:"APP_PORT" envDefault:"8080"`
}

type DB struct {
	HOST     string `env:"DB_HOST"`
	USER     string `env:"DB_USER"`
	PASSWORD string `env:"DB_PASSWORD"`
	NAME     string `env:"DB_NAME"`
	PORT     string `env:"DB_PORT"`
	SSLMODE  string `env:"DB_SSLMODE"`
}

type Kafka struct {
	Brokers              string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	MonitorConsumerGroup string `env:"KAFKA_MONITOR_GROUP_ID" envDefault:"payment-monitor-service"`
	PublishTopics        string `env:"KAFKA_PUBLISH_TOPICS" envDefault:"payments.status.changed,notifications.user"`
	SubscriberTopics     string `env:"KAFKA_SUBSCRIBER_TOPICS" envDefault:"checkouts.created"`

	RetryMaxAttempts int           `env:"KAFKA_RETRY_MAX_ATTEMPTS" envDefault:"5"`
	RetryBaseDelay   time.Duration `env:"KAFKA_RETRY_BASE_DELAY" envDefault:"100ms"`
	RetryMaxDelay    time.Duration `env:"KAFKA_RETRY_MAX_DELAY" envDefault:"10s"`
	RetryJitter      bool          `env:"KAFKA_RETRY_JITTER" envDefault:"true"`
}

type Gateway struct {
	URL         string        `env:"GATEWAY_URL" envDefault:"http://localhost:8081"`
	CallTimeout time.Duration `env:"GATEWAY_CALL_TIMEOUT" envDefault:"2s"`
}

type Monitor struct {
	BaseInterval        time.Duration `env:"MONITOR_BASE_INTERVAL" envDefault:"3s"`
	BackoffFactor       float64       `env:"MONITOR_BACKOFF_FACTOR" envDefault:"1.5"`
	MaxInterval         time.Duration `env:"MONITOR_MAX_INTERVAL" envDefault:"30s"`
	SettleInterval      time.Duration `env:"MONITOR_SETTLE_INTERVAL" envDefault:"10s"`
	SettlePolls         int           `env:"MONITOR_SETTLE_POLLS" envDefault:"2"`
	MaxRetries          int           `env:"MONITOR_MAX_RETRIES" envDefault:"10"`
	AutoRefresh         bool          `env:"MONITOR_AUTO_REFRESH" envDefault:"true"`
	EnableNotifications bool          `env:"MONITOR_ENABLE_NOTIFICATIONS" envDefault:"true"`
	EnableSound         bool          `env:"MONITOR_ENABLE_SOUND" envDefault:"false"`
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

func (k Kafka) GetRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: k.RetryMaxAttempts,
		BaseDelay:   k.RetryBaseDelay,
		MaxDelay:    k.RetryMaxDelay,
		Jitter:      k.RetryJitter,
	}
}
