package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/craftforge/payouts/internal/config"
	gatewaydomain "github.com/craftforge/payouts/internal/gateway/domain"
	payoutmethoddomain "github.com/craftforge/payouts/internal/payoutmethod/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config        config.Config
	PayoutMethods payoutmethoddomain.Service
	Log           *zap.Logger
}

// Server exposes the read-only catalog surface plus health and metrics.
type Server struct {
	engine        *gin.Engine
	payoutMethods payoutmethoddomain.Service
	log           *zap.Logger
}

func New(p Params) *Server {
	if p.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:        engine,
		payoutMethods: p.PayoutMethods,
		log:           p.Log.Named("server"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")
	v1.GET("/payout_methods", s.listPayoutMethods)
}

func (s *Server) listPayoutMethods(c *gin.Context) {
	methods, err := s.payoutMethods.GetPayoutMethods(c.Request.Context())
	if err != nil {
		s.log.Error("list payout methods", zap.Error(err))
		if gatewaydomain.IsPaymentError(err) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment system unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payout_methods": methods})
}

var Module = fx.Module("http.server",
	fx.Provide(New),
	fx.Invoke(run),
)

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server exited", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
