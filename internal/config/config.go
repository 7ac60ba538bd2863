package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/joho/godotenv"
	"github.com/psds-microservice/ticket-feed-service/internal/kafka"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	LogLevel string

	// KafkaBrokers — push-фид событий тикетов. Пустой список допустим:
	// лента работает только на выборках, без live-обновлений.
	KafkaBrokers     []string
	KafkaTopicPrefix string
	KafkaGroupPrefix string

	// DeleteBehavior: reset — сброс ленты на удаление (историческое
	// поведение), remove — точечное удаление по id.
	DeleteBehavior string
	// TagMatch: any — хотя бы один тег, all — все теги.
	TagMatch string

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:          getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:         firstEnv("APP_PORT", "HTTP_PORT", "8099"),
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		KafkaBrokers:     kafka.ParseBrokers(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "tickets"),
		KafkaGroupPrefix: getEnv("KAFKA_GROUP_PREFIX", "ticket-feed"),
		DeleteBehavior:   getEnv("DELETE_BEHAVIOR", "reset"),
		TagMatch:         getEnv("TAG_MATCH", "any"),
	}
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "ticket_feed")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DB.Host == "" || c.DB.Database == "" {
		return errors.New("config: DB_HOST and DB_DATABASE are required")
	}
	if c.AppEnv == "production" && c.DB.Password == "" {
		return errors.New("config: in production DB_PASSWORD is required")
	}
	if c.DeleteBehavior != "reset" && c.DeleteBehavior != "remove" {
		return fmt.Errorf("config: unknown DELETE_BEHAVIOR %q (reset|remove)", c.DeleteBehavior)
	}
	if c.TagMatch != "any" && c.TagMatch != "all" {
		return fmt.Errorf("config: unknown TAG_MATCH %q (any|all)", c.TagMatch)
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
