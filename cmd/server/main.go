package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"parklot/internal/api"
	"parklot/internal/auth"
	"parklot/internal/cache"
	"parklot/internal/clock"
	"parklot/internal/config"
	"parklot/internal/repository"
	"parklot/internal/service"
)

func main() {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	database, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := database.Ping(); err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}

	availCache, err := cache.New(cfg.RedisURL, cfg.AvailabilityTTL)
	if err != nil {
		log.Printf("Availability cache disabled: %v", err)
		availCache = nil
	}

	clk := clock.New()

	slotRepo := repository.NewSlotRepository(database)
	bookingRepo := repository.NewBookingRepository(database)
	adminRepo := repository.NewAdminRepository(database)
	adminAuthRepo := repository.NewAdminAuthRepository(database)

	stripeService := service.NewStripeService(
		cfg.StripeSecretKey,
		os.Getenv("STRIPE_SUCCESS_URL"),
		os.Getenv("STRIPE_CANCEL_URL"),
	)
	notifyService := service.NewNotifyService()

	reservationService := service.NewReservationService(slotRepo, bookingRepo, stripeService, availCache, clk, cfg)
	bookingService := service.NewBookingService(bookingRepo, stripeService, notifyService, clk, cfg)
	sweeperService := service.NewSweeperService(bookingRepo, notifyService, clk, cfg)
	adminService := service.NewAdminService(adminRepo, slotRepo, clk)
	adminAuthService := service.NewAdminAuthService(adminAuthRepo, cfg.JWTSecret)

	bookingHandler := api.NewBookingHandler(reservationService, bookingService)
	adminHandler := api.NewAdminHandler(adminService, sweeperService)
	adminAuthHandler := api.NewAdminAuthHandler(adminAuthService)
	stripeHandler := api.NewStripeWebhookHandler(cfg.StripeWebhookSecret, bookingService)

	c := cron.New()
	c.AddFunc("@every "+cfg.SweepInterval.String(), func() {
		if _, err := sweeperService.SweepExpired(); err != nil {
			log.Printf("Scheduled sweep failed: %v", err)
		}
		if _, err := sweeperService.CancelStalePending(); err != nil {
			log.Printf("Pending timeout sweep failed: %v", err)
		}
	})
	c.AddFunc("@every 15m", func() {
		sweeperService.NotifyExpiringSoon(30 * time.Minute)
	})
	c.Start()
	defer c.Stop()

	r := mux.NewRouter()

	// Public endpoints
	r.HandleFunc("/api/availability", bookingHandler.CheckAvailability).Methods("POST")
	r.HandleFunc("/api/bookings", bookingHandler.CreateBooking).Methods("POST")
	r.HandleFunc("/api/bookings/{code}", bookingHandler.GetBooking).Methods("GET")
	r.HandleFunc("/api/bookings/{code}", bookingHandler.CancelBooking).Methods("DELETE")
	r.HandleFunc("/api/bookings/{code}/entry", bookingHandler.RecordEntry).Methods("POST")
	r.HandleFunc("/api/bookings/{code}/exit", bookingHandler.RecordExit).Methods("POST")
	r.HandleFunc("/api/payments/webhook", stripeHandler.HandleWebhook).Methods("POST")
	r.HandleFunc("/admin/login", adminAuthHandler.Login).Methods("POST")

	// Admin endpoints (protected)
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(auth.AdminAuthMiddleware(cfg.JWTSecret))
	admin.HandleFunc("/bookings", adminHandler.ListBookings).Methods("GET")
	admin.HandleFunc("/bookings/{code}/history", bookingHandler.GetBookingHistory).Methods("GET")
	admin.HandleFunc("/bookings/overdue", adminHandler.ListOverdue).Methods("GET")
	admin.HandleFunc("/locations/{location_id}/slots", adminHandler.ListSlots).Methods("GET")
	admin.HandleFunc("/slots/{id}/maintenance", adminHandler.SetSlotMaintenance).Methods("PUT")
	admin.HandleFunc("/slots/{id}/history", adminHandler.SlotHistory).Methods("GET")
	admin.HandleFunc("/sweep", adminHandler.SweepExpired).Methods("POST")
	admin.HandleFunc("/register", adminAuthHandler.CreateAdmin).Methods("POST")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.Printf("Server running on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, handlers.LoggingHandler(os.Stdout, cors(r))))
}
