package httpserver

import (
	"context"
	"io"
	"log"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"yogurt-storefront/internal/cart"
	"yogurt-storefront/internal/domain"
	"yogurt-storefront/internal/service/checkout"
	"yogurt-storefront/internal/service/order"
	"yogurt-storefront/internal/service/session"
)

// Catalog is the product listing the pages read from.
type Catalog interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	BestSellers(ctx context.Context) ([]domain.Product, error)
	ByCategory(ctx context.Context, category string) ([]domain.Product, error)
	Related(ctx context.Context, p domain.Product) ([]domain.Product, error)
}

// Carts hands out the cart store of a session.
type Carts interface {
	Get(ctx context.Context, sessionID string) *cart.Store
}

type Checkout interface {
	Submit(ctx context.Context, c checkout.Cart, in checkout.Input) (*checkout.Result, error)
}

type OrderStatus interface {
	Status(ctx context.Context, id string) (*order.View, error)
}

// Deps carries the services the router needs.
type Deps struct {
	Catalog        Catalog
	Carts          Carts
	Checkout       Checkout
	Orders         OrderStatus
	Sessions       *session.Service
	AllowedOrigins []string
	ReadyChecks    map[string]ReadyCheck
}

// buildRouter wires the storefront pages, the cart API and health probes.
func buildRouter(logger *log.Logger, deps Deps) (*gin.Engine, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if deps.Sessions == nil {
		deps.Sessions = session.New(0, false)
	}
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	static, err := staticFiles()
	if err != nil {
		return nil, err
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery(), apiCORS(deps.AllowedOrigins))
	router.SetHTMLTemplate(tmpl)
	router.StaticFS("/static", static)

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.ReadyChecks))

	h := &handlers{deps: deps, logger: logger}
	router.NoRoute(h.notFound)

	pages := router.Group("/", sessionMiddleware(deps.Sessions, deps.Carts))
	pages.GET("", h.home)
	pages.GET("all", h.listAll)
	pages.GET("sweets", h.listing("Sweets", "sweet"))
	pages.GET("fruits", h.listing("Fruits", "fruit"))
	pages.GET("product/:id", h.product)
	pages.GET("cart", h.cartPage)
	pages.POST("cart/items", h.addItem)
	pages.POST("cart/items/:id", h.setQuantity)
	pages.POST("cart/items/:id/remove", h.removeItem)
	pages.GET("checkout", h.checkoutPage)
	pages.POST("checkout", h.submitCheckout)
	pages.GET("order-status", h.orderStatus)

	api := router.Group("/api", sessionMiddleware(deps.Sessions, deps.Carts))
	api.GET("/cart", h.apiCart)
	api.POST("/cart/items", h.apiAddItem)
	api.PATCH("/cart/items/:id", h.apiSetQuantity)
	api.DELETE("/cart/items/:id", h.apiRemoveItem)
	api.DELETE("/cart", h.apiClear)
	api.GET("/cart/events", h.cartEvents)

	return router, nil
}

// apiCORS applies CORS to /api only. It runs on the engine rather than the
// group so preflight requests, which match no route, still get answered.
func apiCORS(origins []string) gin.HandlerFunc {
	handle := cors.New(corsConfig(origins))
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			handle(c)
		}
	}
}

// corsConfig allows credentialed calls from the configured origins, or
// anonymous calls from anywhere when none are configured.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}
