package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Orders   OrdersConfig
	Payment  PaymentConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

type OrdersConfig struct {
	// ConfirmWindow bounds how long an order may wait for staff
	// confirmation before it is rolled back to draft.
	ConfirmWindow time.Duration
	// DraftRateLimit caps customer draft mutations per client per minute.
	DraftRateLimit int
}

type PaymentConfig struct {
	// GatewayURL is the external payment initiation endpoint; empty means
	// payment initiation is a no-op (local development).
	GatewayURL string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080"
	}

	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SERVER_PORT: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host: serverHost,
		Port: serverPort,
	}

	postgresHost := os.Getenv("POSTGRES_HOST")
	if postgresHost == "" {
		postgresHost = "localhost"
	}

	postgresPortStr := os.Getenv("POSTGRES_PORT")
	if postgresPortStr == "" {
		postgresPortStr = "5432"
	}

	postgresPort, err := strconv.Atoi(postgresPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid POSTGRES_PORT: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresSSLMode := os.Getenv("POSTGRES_SSLMODE")
	if postgresSSLMode == "" {
		postgresSSLMode = "disable"
	}

	postgresCfg := PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     postgresHost,
		Port:     postgresPort,
		SSLMode:  postgresSSLMode,
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisCfg := RedisConfig{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}

	confirmWindow := 10 * time.Minute
	if s := os.Getenv("ORDERS_CONFIRM_WINDOW"); s != "" {
		confirmWindow, err = time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid ORDERS_CONFIRM_WINDOW: %w", op, err)
		}
	}

	draftRateLimit := 120
	if s := os.Getenv("ORDERS_DRAFT_RATE_LIMIT"); s != "" {
		draftRateLimit, err = strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid ORDERS_DRAFT_RATE_LIMIT: %w", op, err)
		}
	}

	ordersCfg := OrdersConfig{
		ConfirmWindow:  confirmWindow,
		DraftRateLimit: draftRateLimit,
	}

	paymentCfg := PaymentConfig{
		GatewayURL: os.Getenv("PAYMENT_GATEWAY_URL"),
	}

	return &Config{
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Orders:   ordersCfg,
		Payment:  paymentCfg,
	}, nil
}
