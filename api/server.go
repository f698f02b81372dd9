// Package api exposes the simulator over HTTP and WebSocket.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Aidin1998/pincex_sim/api/handlers"
	"github.com/Aidin1998/pincex_sim/api/middleware"
	"github.com/Aidin1998/pincex_sim/api/responses"
	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/factory"
	"github.com/Aidin1998/pincex_sim/internal/simulation"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/Aidin1998/pincex_sim/internal/ws"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Options configures the server.
type Options struct {
	AllowedOrigins  []string
	ServiceName     string
	ShutdownTimeout time.Duration
	// RateLimit is write requests per second per client; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// Server represents the API server
type Server struct {
	router   *gin.Engine
	logger   *zap.Logger
	handlers *handlers.Handlers
	hub      *ws.Hub
	limiter  *middleware.Limiter
	opts     Options
}

// NewServer wires routes over the simulation. hub may be nil, in which case
// the stream endpoint answers 503.
func NewServer(logger *zap.Logger, sim *simulation.Simulation, strategies *factory.StrategyFactory, instrument model.Instrument, hub *ws.Hub, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "pincex-sim"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware(opts.ServiceName))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     opts.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		router:   router,
		logger:   logger,
		handlers: handlers.New(logger, sim, strategies, instrument),
		hub:      hub,
		opts:     opts,
	}
	if opts.RateLimit > 0 {
		s.limiter = middleware.NewLimiter(opts.RateLimit, opts.RateBurst)
	}
	s.registerRoutes()
	return s
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/metrics", gin.WrapH(promhttp.Handler()))
		v1.GET("/health", s.handlers.Health)

		orders := v1.Group("/orders")
		{
			orders.POST("", middleware.RateLimit(s.limiter), s.handlers.PlaceOrder)
			orders.GET("/:id", s.handlers.GetOrder)
			orders.DELETE("/:id", s.handlers.CancelOrder)
		}

		v1.GET("/book", s.handlers.Book)
		v1.GET("/book/top", s.handlers.Top)
		v1.GET("/trades", s.handlers.Trades)

		bots := v1.Group("/bots")
		{
			bots.GET("", s.handlers.ListBots)
			bots.POST("", middleware.RateLimit(s.limiter), s.handlers.DeployBots)
			bots.DELETE("/:id", s.handlers.RemoveBot)
		}
		v1.GET("/strategies", s.handlers.Strategies)

		v1.GET("/ws", s.serveWS)
	}
	s.router.NoRoute(func(c *gin.Context) {
		responses.NotFound(c, fmt.Sprintf("no route for %s %s", c.Request.Method, c.Request.URL.Path))
	})
}

func (s *Server) serveWS(c *gin.Context) {
	if s.hub == nil {
		responses.ServiceUnavailable(c, "event stream is disabled")
		return
	}
	s.hub.ServeWS(c.Writer, c.Request)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.logger.Info("Shutting down API server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}
