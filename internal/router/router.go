package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mesa-pos/api/internal/config"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/mesa-pos/api/internal/handler"
	mw "github.com/mesa-pos/api/internal/middleware"
	"github.com/mesa-pos/api/internal/service"
	"github.com/mesa-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Authentication and role-based middleware are applied per route group;
// finer-grained capability checks live in the service layer.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/stations/{id}/tickets", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services. Each gets a store factory so transactional code paths can
	// run the same queries against the active transaction.
	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	ticketService := service.NewTicketService(pool, func(db database.DBTX) service.TicketStore {
		return database.New(db)
	}, hub)
	itemService := service.NewItemService(pool, func(db database.DBTX) service.ItemStore {
		return database.New(db)
	})
	billService := service.NewBillService(pool, func(db database.DBTX) service.BillStore {
		return database.New(db)
	})
	shiftService := service.NewShiftService(pool, func(db database.DBTX) service.ShiftStore {
		return database.New(db)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager))

			userHandler := handler.NewUserHandler(queries)
			r.Route("/users", userHandler.RegisterRoutes)

			settingsHandler := handler.NewSettingsHandler(queries)
			r.Route("/settings", settingsHandler.RegisterRoutes)

			reportHandler := handler.NewReportHandler(queries)
			r.Route("/reports", reportHandler.RegisterRoutes)
			r.Route("/activity-logs", reportHandler.RegisterActivityLogRoutes)

			stockHandler := handler.NewStockHandler(queries)
			r.Route("/stock-items", stockHandler.RegisterRoutes)
		})

		// Catalog
		stationHandler := handler.NewStationHandler(queries)
		r.Route("/stations", stationHandler.RegisterRoutes)

		menuHandler := handler.NewMenuHandler(queries)
		r.Route("/menu-items", menuHandler.RegisterRoutes)

		discountHandler := handler.NewDiscountHandler(queries)
		r.Route("/discounts", discountHandler.RegisterRoutes)

		customerHandler := handler.NewCustomerHandler(queries)
		r.Route("/customers", customerHandler.RegisterRoutes)

		// Orders and everything nested on them
		orderHandler := handler.NewOrderHandler(orderService, queries)
		ticketHandler := handler.NewTicketHandler(ticketService)
		itemHandler := handler.NewItemHandler(itemService)
		billHandler := handler.NewBillHandler(billService, queries)

		r.Route("/orders", func(r chi.Router) {
			orderHandler.RegisterRoutes(r)
			ticketHandler.RegisterOrderRoutes(r)
			itemHandler.RegisterOrderRoutes(r)
			billHandler.RegisterOrderRoutes(r)
		})
		r.Route("/tickets", ticketHandler.RegisterRoutes)
		r.Route("/items", itemHandler.RegisterRoutes)
		r.Route("/bills", billHandler.RegisterRoutes)

		// Shifts and work periods
		shiftHandler := handler.NewShiftHandler(shiftService, queries)
		r.Route("/work-periods", shiftHandler.RegisterWorkPeriodRoutes)
		r.Route("/shifts", shiftHandler.RegisterRoutes)

		// Print queue, polled by the printer bridge
		printJobHandler := handler.NewPrintJobHandler(ticketService, queries)
		r.Route("/print-jobs", printJobHandler.RegisterRoutes)
	})

	return r
}
