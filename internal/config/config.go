package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Passkey        string
	Shortcode      string
	CallbackURL    string
}

type Config struct {
	ListenAddr   string
	PostgresDSN  string
	MongoURI     string
	MongoDB      string
	RedisAddr    string
	KafkaBrokers []string
	JWTSecret    string
	Mpesa        MpesaConfig
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		ListenAddr:   os.Getenv("LISTEN_ADDR"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		MongoURI:     os.Getenv("MONGO_URI"),
		MongoDB:      os.Getenv("MONGO_DB"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: []string{os.Getenv("KAFKA_BROKER")},
		JWTSecret:    os.Getenv("JWT_SECRET"),
		Mpesa: MpesaConfig{
			BaseURL:        os.Getenv("MPESA_BASE_URL"),
			ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
			Passkey:        os.Getenv("MPESA_PASSKEY"),
			Shortcode:      os.Getenv("MPESA_BUSINESS_SHORTCODE"),
			CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
		},
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.PostgresDSN == "" {
		cfg.PostgresDSN = "host=localhost user=postgres password=postgres dbname=housetree sslmode=disable"
	}
	if cfg.MongoURI == "" {
		cfg.MongoURI = "mongodb://localhost:27017"
	}
	if cfg.MongoDB == "" {
		cfg.MongoDB = "housetree"
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if len(cfg.KafkaBrokers) == 1 && cfg.KafkaBrokers[0] == "" {
		cfg.KafkaBrokers = []string{"localhost:9092"}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "supersecret"
	}
	if cfg.Mpesa.BaseURL == "" {
		cfg.Mpesa.BaseURL = "https://sandbox.safaricom.co.ke"
	}
	if cfg.Mpesa.CallbackURL == "" {
		cfg.Mpesa.CallbackURL = "http://localhost:8080/payments/callback"
	}

	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"mongo_uri", cfg.MongoURI,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"mpesa_base_url", cfg.Mpesa.BaseURL)
	return cfg
}
