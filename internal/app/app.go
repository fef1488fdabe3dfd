package app

import (
	"papertrade-backend/internal/auth"
	"papertrade-backend/internal/config"
	"papertrade-backend/internal/database"
	"papertrade-backend/internal/health"
	"papertrade-backend/internal/middleware"
	"papertrade-backend/internal/portfolio"
	"papertrade-backend/internal/quotes"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with all global middleware and route registration.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	// CORS (before session)
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	// Session (Redis)
	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	app.Use(sessionHandler)

	// Request id + route logger
	app.Use(middleware.RequestID())
	app.Use(middleware.RouteLogger())

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	// Health (no auth)
	healthHandlers := &health.Handlers{Rdb: rdb}
	if db != nil {
		healthHandlers.DB = &gormPinger{db: db}
	}
	app.Get("/health/json", healthHandlers.JSON)

	// Auth (register/login public; me/logout/change-password behind session)
	var userFinder auth.UserFinder
	if db != nil {
		userFinder = &auth.GormUserFinder{DB: db}
	}
	authHandlers := &auth.Handlers{
		DB:           db,
		UserFinder:   userFinder,
		Rdb:          rdb,
		Config:       sessionCfg,
		StartingCash: cfg.StartingCash,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/register", authHandlers.Register)
	authGroup.Post("/login", authHandlers.Login)
	authGroup.Get("/me", authHandlers.Me)
	authGroup.Delete("/logout", authHandlers.Logout)
	authGroup.Post("/change-password", middleware.RequireAuth(), authHandlers.ChangePassword)

	// --- Protected modules (auth required) ---
	if db != nil && rdb != nil {
		quoteClient := quotes.NewClient(cfg.QuoteAPIURL, cfg.QuoteAPIToken, rdb, cfg.QuoteCacheTTL)

		// Quotes module
		quoteHandlers := &quotes.Handlers{Quoter: quoteClient}
		quoteGroup := app.Group("/api/v1/quotes", middleware.RequireAuth())
		quoteGroup.Get("/:symbol", quoteHandlers.GetQuote)

		// Portfolio module (settlement engine + read paths)
		portfolioService := &portfolio.Service{DB: db, Quoter: quoteClient}
		portfolioHandlers := &portfolio.Handlers{Service: portfolioService}
		portfolioGroup := app.Group("/api/v1/portfolio", middleware.RequireAuth())
		portfolioGroup.Get("/", portfolioHandlers.GetPortfolio)
		portfolioGroup.Get("/history", portfolioHandlers.GetHistory)
		portfolioGroup.Post("/buy", portfolioHandlers.Buy)
		portfolioGroup.Post("/sell", portfolioHandlers.Sell)
	}

	return app, db, rdb, nil
}

type gormPinger struct{ db *gorm.DB }

func (g *gormPinger) Ping() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
