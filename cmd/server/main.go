package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/event"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/market"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/metrics"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/price"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/production"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/store"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/user"
)

func main() {
	// Local development convenience; in deployment the environment is set
	// by the platform and no .env file exists.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Event bus: metrics and WebSocket collectors ---
	bus := event.NewBus()
	bus.Subscribe(metrics.NewCollector())

	hub := event.NewHub()
	go hub.Run()
	bus.Subscribe(hub)

	// --- Services ---
	systemAccountID := os.Getenv("SYSTEM_ACCOUNT_ID")
	if systemAccountID == "" {
		slog.Warn("SYSTEM_ACCOUNT_ID not set, market simulation is disabled")
	}

	marketSvc := market.NewService(st, bus, systemAccountID)
	productionSvc := production.NewService(st)
	priceSvc := price.NewService(st)
	userSvc := user.NewService(st)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"quantum-energy-back"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time domain events.
		r.Get("/ws", hub.HandleWS)

		// Users.
		r.Post("/users", userSvc.HandleCreate)
		r.Get("/users", userSvc.HandleList)
		r.Get("/users/{userID}", userSvc.HandleGet)

		// Production entries.
		r.Post("/productions", productionSvc.HandleCreate)
		r.Get("/productions", productionSvc.HandleList)
		r.Get("/productions/{entryID}", productionSvc.HandleGet)
		r.Put("/productions/{entryID}", productionSvc.HandleUpdate)
		r.Delete("/productions/{entryID}", productionSvc.HandleDelete)

		// Offers.
		r.Post("/offers", marketSvc.HandleCreateOffer)
		r.Get("/offers", marketSvc.HandleListOffers)
		r.Get("/offers/{offerID}", marketSvc.HandleGetOffer)
		r.Put("/offers/{offerID}", marketSvc.HandleUpdateOffer)
		r.Delete("/offers/{offerID}", marketSvc.HandleDeleteOffer)

		// Orders.
		r.Post("/orders", marketSvc.HandleCreateOrder)
		r.Get("/orders", marketSvc.HandleListOrders)
		r.Get("/orders/{orderID}", marketSvc.HandleGetOrder)
		r.Delete("/orders/{orderID}", marketSvc.HandleDeleteOrder)

		// Clearing prices.
		r.Post("/prices", priceSvc.HandleCreate)
		r.Get("/prices", priceSvc.HandleList)
		r.Get("/prices/latest", priceSvc.HandleLatest)
		r.Get("/prices/{priceID}", priceSvc.HandleGet)
		r.Put("/prices/{priceID}", priceSvc.HandleUpdate)
		r.Delete("/prices/{priceID}", priceSvc.HandleDelete)

		// Market simulation.
		r.Post("/market/simulate", marketSvc.HandleSimulate)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("quantum-energy-back listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down quantum-energy-back...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("quantum-energy-back stopped")
}
