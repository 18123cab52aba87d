// Package server exposes the credit ledger over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/veeville2011/try-this-look-sub005/internal/account/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/clock"
	"github.com/veeville2011/try-this-look-sub005/internal/config"
	consumptiondomain "github.com/veeville2011/try-this-look-sub005/internal/consumption/domain"
	creditsdomain "github.com/veeville2011/try-this-look-sub005/internal/credits/domain"
	ledgerdomain "github.com/veeville2011/try-this-look-sub005/internal/ledger/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/logger"
	renewaldomain "github.com/veeville2011/try-this-look-sub005/internal/renewal/domain"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	Clock       clock.Clock
	AccountSvc  accountdomain.Service
	Store       ledgerdomain.Store
	Engine      consumptiondomain.Engine
	Reconciler  renewaldomain.Reconciler
	CouponSvc   creditsdomain.CouponService
	PurchaseSvc creditsdomain.PurchaseService
	Registry    *prometheus.Registry
}

type Server struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         config.Config
	clock       clock.Clock
	accountSvc  accountdomain.Service
	store       ledgerdomain.Store
	engine      consumptiondomain.Engine
	reconciler  renewaldomain.Reconciler
	couponSvc   creditsdomain.CouponService
	purchaseSvc creditsdomain.PurchaseService
	registry    *prometheus.Registry
}

func New(p Params) *Server {
	return &Server{
		db:          p.DB,
		log:         p.Log.Named("server"),
		cfg:         p.Cfg,
		clock:       p.Clock,
		accountSvc:  p.AccountSvc,
		store:       p.Store,
		engine:      p.Engine,
		reconciler:  p.Reconciler,
		couponSvc:   p.CouponSvc,
		purchaseSvc: p.PurchaseSvc,
		registry:    p.Registry,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	{
		v1.POST("/accounts", s.CreateAccount)
		v1.GET("/accounts/:account_id/balances", s.GetBalances)
		v1.POST("/consume", s.Consume)
		v1.POST("/webhooks/period-renewal", s.PeriodRenewal)
		v1.POST("/webhooks/trial-ended", s.TrialEnded)
		v1.POST("/coupons/redeem", s.RedeemCoupon)
		v1.POST("/purchases/confirm", s.ConfirmPurchase)
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.FromContext(c.Request.Context()).Named("http").Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
		srv := &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: s.Router(),
		}
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				log.Info("http server listening", zap.String("addr", cfg.ListenAddr))
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error("http server stopped", zap.Error(err))
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
		})
	}),
)
