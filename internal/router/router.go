package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/comanda-pos/api/internal/config"
	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/handler"
	"github.com/comanda-pos/api/internal/menu"
	mw "github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/notify"
	"github.com/comanda-pos/api/internal/service"
	"github.com/comanda-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and establishment scoping; each handler gates its
// own routes on the permission matrix. A nil redis client disables menu
// caching.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, rdb *redis.Client, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	newAuthStore := func(db database.DBTX) handler.AuthStore {
		return database.New(db)
	}
	authHandler := handler.NewAuthHandler(queries, pool, newAuthStore, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/establishments/{eid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	notifier := notify.New(cfg.PushURL, cfg.PushKey)

	var menuCache *menu.Cache
	if rdb != nil {
		menuCache = menu.NewCache(rdb, queries, cfg.MenuCacheTTL)
	} else {
		menuCache = menu.NewCache(nil, queries, cfg.MenuCacheTTL)
	}

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Profile (self-service, not establishment-scoped)
		profileHandler := handler.NewProfileHandler(queries)
		r.Route("/profile", profileHandler.RegisterRoutes)

		// Establishment-scoped routes
		r.Route("/establishments/{eid}", func(r chi.Router) {
			r.Use(mw.RequireEstablishment)

			// Users
			userHandler := handler.NewUserHandler(queries)
			r.Route("/users", userHandler.RegisterRoutes)

			// Invitations
			invitationHandler := handler.NewInvitationHandler(queries)
			r.Route("/invitations", invitationHandler.RegisterRoutes)

			// Tables
			tableHandler := handler.NewTableHandler(queries)
			r.Route("/tables", tableHandler.RegisterRoutes)

			// Products (menu, cached through redis)
			productHandler := handler.NewProductHandler(queries, menuCache)
			r.Route("/products", productHandler.RegisterRoutes)

			// Inventory
			inventoryService := service.NewInventoryService(queries)
			inventoryHandler := handler.NewInventoryHandler(queries, inventoryService, notifier)
			r.Route("/inventory", inventoryHandler.RegisterRoutes)

			// Orders
			newOrderStore := func(db database.DBTX) service.OrderStore {
				return database.New(db)
			}
			orderService := service.NewOrderService(pool, newOrderStore)
			orderHandler := handler.NewOrderHandler(orderService, queries, hub, notifier)
			r.Route("/orders", orderHandler.RegisterRoutes)

			// Reports
			reportHandler := handler.NewReportHandler(queries)
			r.Route("/reports", reportHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
