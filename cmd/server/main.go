package main

import (
	"log"
	"net/http"

	"kaluma-be/internal/config"
	"kaluma-be/internal/db"
	"kaluma-be/internal/donation"
	"kaluma-be/internal/donation/handler"
	"kaluma-be/internal/logger"
	"kaluma-be/internal/middleware"
	"kaluma-be/internal/pesapal"
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	gateway := pesapal.NewClient(pesapal.Environment(cfg.PesapalEnv), pesapal.Credential{
		ConsumerKey:    cfg.PesapalConsumerKey,
		ConsumerSecret: cfg.PesapalConsumerSecret,
	})

	registry := pesapal.NewIPNRegistry(gateway, pesapal.NotifyGET)
	registry.Seed(cfg.IPNURL(), cfg.PesapalIPNID)

	repo := donation.NewRepository(database)
	svc := donation.NewService(gateway, registry, repo, donation.Options{
		CallbackURL:     cfg.CallbackURL(),
		NotificationURL: cfg.IPNURL(),
	})

	h := handler.New(svc, cfg.ReceiptBaseURL)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/donations", h.CreateOrder)
	mux.HandleFunc("/api/payments/ipn", h.IPN)
	mux.HandleFunc("/api/payments/return", h.Return)
	mux.HandleFunc("/api/receipt/", h.Receipt)

	limiter := middleware.NewRateLimiter()
	chain := middleware.CORS(cfg.AllowedOrigins)(
		limiter.Middleware(
			middleware.Logging(mux),
		),
	)

	log.Printf("🚀 Donation server running at http://localhost:%s/", cfg.AppPort)
	log.Fatal(http.ListenAndServe(":"+cfg.AppPort, chain))
}
