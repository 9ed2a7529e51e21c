package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jmehdipour/order-pipeline/internal/config"
	"github.com/jmehdipour/order-pipeline/internal/http/middleware"
	"github.com/jmehdipour/order-pipeline/internal/repository"
	"github.com/jmehdipour/order-pipeline/internal/service/order"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, db *sqlx.DB, rds *redis.Client) *Server {
	// repos
	clientsRepo := repository.NewClientsRepository(db)
	productsRepo := repository.NewProductsRepository(db)
	ordersRepo := repository.NewOrdersRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	// services
	orderSvc := order.NewService(db, ordersRepo, productsRepo, outboxRepo)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(clientsRepo)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:client:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	api := e.Group("/api", authMW, rlMW)
	api.POST("/orders", createOrderHandler(orderSvc))
	api.GET("/orders", listOrdersHandler(orderSvc))
	api.GET("/orders/:id", getOrderHandler(orderSvc))
	api.GET("/products", listProductsHandler(productsRepo))
	api.GET("/products/:id", getProductHandler(productsRepo))

	admin := api.Group("", middleware.RequireAdmin())
	admin.POST("/products", createProductHandler(productsRepo))
	admin.PUT("/products/:id", updateProductHandler(productsRepo))
	admin.DELETE("/products/:id", deleteProductHandler(productsRepo))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
