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

	"github.com/dcutelaria/storefront/internal/cart"
	"github.com/dcutelaria/storefront/internal/cep"
	"github.com/dcutelaria/storefront/internal/checkout"
	"github.com/dcutelaria/storefront/internal/config"
	"github.com/dcutelaria/storefront/internal/handlers"
	"github.com/dcutelaria/storefront/internal/middleware"
	"github.com/dcutelaria/storefront/internal/notify"
	"github.com/dcutelaria/storefront/internal/podpay"
	"github.com/dcutelaria/storefront/internal/repository"
	"github.com/dcutelaria/storefront/internal/service"
	"github.com/dcutelaria/storefront/internal/tracking"
	"github.com/dcutelaria/storefront/internal/webhook"
	"github.com/dcutelaria/storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("starting storefront api server",
		"port", cfg.Server.Port,
		"host", cfg.Server.Host,
		"log_level", cfg.LogLevel,
	)

	ctx := context.Background()

	// Cart storage: redis when configured, in-memory otherwise
	var cartStore cart.Store
	if cfg.Storage.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Storage.RedisAddr,
			DB:   cfg.Storage.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect to redis", "addr", cfg.Storage.RedisAddr, "error", err)
			os.Exit(1)
		}
		cartStore = cart.NewRedisStore(client)
		log.Info("cart storage: redis", "addr", cfg.Storage.RedisAddr)
	} else {
		cartStore = cart.NewMemoryStore()
		log.Info("cart storage: in-memory")
	}

	// Order storage: postgres when configured, in-memory otherwise
	var orderRepo repository.OrderRepository
	if cfg.Storage.PostgresDSN != "" {
		db, err := repository.NewPostgres(cfg.Storage.PostgresDSN)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pgRepo := repository.NewPostgresOrderRepository(db)
		if err := pgRepo.Migrate(ctx); err != nil {
			log.Error("failed to run order migrations", "error", err)
			os.Exit(1)
		}
		orderRepo = pgRepo
		log.Info("order storage: postgres")
	} else {
		orderRepo = repository.NewInMemoryOrderRepository()
		log.Info("order storage: in-memory")
	}

	productRepo := repository.NewInMemoryProductRepository()
	productService := service.NewProductService(productRepo)

	gateway := podpay.NewClient(cfg.PodPay.BaseURL, cfg.PodPay.PublicKey, cfg.PodPay.SecretKey, log)
	cepClient := cep.NewClient(cfg.CEP.BaseURL)

	// Post-settlement side effects; each one is optional and best-effort
	var conversion webhook.ConversionSender
	if cfg.Meta.PixelID != "" && cfg.Meta.AccessToken != "" {
		conversion = tracking.NewMetaClient(cfg.Meta.PixelID, cfg.Meta.AccessToken)
	}
	var admin webhook.AdminNotifier
	if cfg.WhatsApp.AdminPhone != "" {
		admin = notify.NewWhatsAppNotifier(notify.WhatsAppConfig{
			EvolutionBaseURL:   cfg.WhatsApp.EvolutionBaseURL,
			EvolutionInstance:  cfg.WhatsApp.EvolutionInstance,
			EvolutionAPIKey:    cfg.WhatsApp.EvolutionAPIKey,
			CloudPhoneNumberID: cfg.WhatsApp.CloudPhoneID,
			CloudAccessToken:   cfg.WhatsApp.CloudAccessToken,
			AdminPhone:         cfg.WhatsApp.AdminPhone,
		}, log)
	}
	var email webhook.EmailSender
	if cfg.Email.ResendAPIKey != "" {
		email = notify.NewEmailNotifier(cfg.Email.ResendAPIKey, cfg.Email.FromAddress)
	}

	receiver := webhook.NewReceiver(orderRepo, conversion, admin, email, log)

	sessions := checkout.NewManager()
	poller := checkout.NewPoller(gateway, orderRepo, time.Duration(cfg.PodPay.PollInterval)*time.Second, log)
	checkoutService := service.NewCheckoutService(sessions, cartStore, orderRepo, gateway, poller, log)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(log)
	productHandler := handlers.NewProductHandler(productService, log)
	cartHandler := handlers.NewCartHandler(cartStore, productRepo, log)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, log)
	webhookHandler := handlers.NewWebhookHandler(receiver, log)
	cepHandler := handlers.NewCEPHandler(cepClient, log)
	orderHandler := handlers.NewOrderHandler(orderRepo, log)

	// Create router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Register health check endpoint
	r.Get("/health", healthHandler.ServeHTTP)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", productHandler.ListProducts)
		r.Get("/products/{productId}", productHandler.GetProduct)

		r.Post("/cart", cartHandler.CreateCart)
		r.Get("/cart/{sessionId}", cartHandler.GetCart)
		r.Delete("/cart/{sessionId}", cartHandler.ClearCart)
		r.Post("/cart/{sessionId}/items", cartHandler.AddItem)
		r.Put("/cart/{sessionId}/items/{productId}", cartHandler.UpdateQuantity)
		r.Delete("/cart/{sessionId}/items/{productId}", cartHandler.RemoveItem)

		r.Post("/checkout", checkoutHandler.StartCheckout)
		r.Get("/checkout/{checkoutId}", checkoutHandler.GetCheckout)
		r.Post("/checkout/{checkoutId}/submit", checkoutHandler.Submit)
		r.Post("/checkout/{checkoutId}/retry", checkoutHandler.Retry)
		r.Post("/checkout/{checkoutId}/complete", checkoutHandler.Complete)
		r.Delete("/checkout/{checkoutId}", checkoutHandler.Cancel)

		r.Post("/webhook/podpay", webhookHandler.HandlePodPay)

		r.Get("/cep/{code}", cepHandler.Lookup)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.Auth))
			r.Get("/orders", orderHandler.ListOrders)
			r.Get("/orders/{orderId}", orderHandler.GetOrder)
		})
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped gracefully")
}
