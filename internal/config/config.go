package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	QuoteAPIURL         string // base URL of the quote feed, e.g. https://cloud.iexapis.com/stable
	QuoteAPIToken       string
	QuoteCacheTTL       time.Duration // 0 disables the Redis quote cache
	StartingCash        float64       // cash granted to a new account
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}

	startingCash := viper.GetFloat64("STARTING_CASH")
	if startingCash <= 0 {
		startingCash = 10000
	}

	cacheTTL := viper.GetDuration("QUOTE_CACHE_TTL")
	if cacheTTL == 0 && !viper.IsSet("QUOTE_CACHE_TTL") {
		cacheTTL = 30 * time.Second
	}

	return &Config{
		Env:                 env,
		Port:                port,
		SessionSecret:       viper.GetString("SESSION_SECRET"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		QuoteAPIURL:         viper.GetString("QUOTE_API_URL"),
		QuoteAPIToken:       viper.GetString("QUOTE_API_TOKEN"),
		QuoteCacheTTL:       cacheTTL,
		StartingCash:        startingCash,
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
	}, nil
}
