package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/aguas/internal/accessscope"
	"github.com/smallbiznis/aguas/internal/authorization"
	"github.com/smallbiznis/aguas/internal/billing"
	"github.com/smallbiznis/aguas/internal/config"
	"github.com/smallbiznis/aguas/internal/identity"
	"github.com/smallbiznis/aguas/internal/invoice"
	"github.com/smallbiznis/aguas/internal/lock"
	"github.com/smallbiznis/aguas/internal/meter"
	meterdomain "github.com/smallbiznis/aguas/internal/meter/domain"
	"github.com/smallbiznis/aguas/internal/notification"
	"github.com/smallbiznis/aguas/internal/observability"
	obslogger "github.com/smallbiznis/aguas/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/aguas/internal/observability/metrics"
	obstracing "github.com/smallbiznis/aguas/internal/observability/tracing"
	"github.com/smallbiznis/aguas/internal/tier"
	tierdomain "github.com/smallbiznis/aguas/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	identity.Module,
	accessscope.Module,
	authorization.Module,
	tier.Module,
	invoice.Module,
	meter.Module,
	lock.Module,
	billing.Module,
	notification.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Params struct {
	fx.In

	Engine   *gin.Engine
	Log      *zap.Logger
	Resolver *accessscope.Resolver
	Authz    authorization.Service
	Meters   meterdomain.Service
	Tiers    tierdomain.Catalog
	Billing  *billing.Engine
	Sink     notification.Sink
	Limiter  *lock.SubmissionLimiter `optional:"true"`
}

type Server struct {
	engine   *gin.Engine
	log      *zap.Logger
	resolver *accessscope.Resolver
	authzSvc authorization.Service
	meterSvc meterdomain.Service
	tierSvc  tierdomain.Catalog
	billing  *billing.Engine
	sink     notification.Sink
	limiter  *lock.SubmissionLimiter
}

func NewServer(p Params) *Server {
	s := &Server{
		engine:   p.Engine,
		log:      p.Log.Named("http.server"),
		resolver: p.Resolver,
		authzSvc: p.Authz,
		meterSvc: p.Meters,
		tierSvc:  p.Tiers,
		billing:  p.Billing,
		sink:     p.Sink,
		limiter:  p.Limiter,
	}
	s.RegisterAPIRoutes()
	return s
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.ResolveCaller())

	meters := api.Group("/meters")
	meters.GET("", s.authorize(authorization.ObjectMeter, authorization.ActionView), s.ListMeters)
	meters.POST("", s.authorize(authorization.ObjectMeter, authorization.ActionCreate), s.CreateMeter)
	meters.GET("/:id", s.authorize(authorization.ObjectMeter, authorization.ActionView), s.GetMeter)
	meters.DELETE("/:id", s.authorize(authorization.ObjectMeter, authorization.ActionDelete), s.DeleteMeter)

	consumptions := api.Group("/consumptions")
	consumptions.GET("", s.authorize(authorization.ObjectConsumption, authorization.ActionView), s.ListConsumptions)
	consumptions.POST("", s.authorize(authorization.ObjectConsumption, authorization.ActionSubmit), s.limitSubmissions(), s.SubmitConsumption)
	consumptions.GET("/:id", s.authorize(authorization.ObjectConsumption, authorization.ActionView), s.GetConsumption)
	consumptions.PUT("/:id", s.authorize(authorization.ObjectConsumption, authorization.ActionUpdate), s.UpdateConsumption)
	consumptions.DELETE("/:id", s.authorize(authorization.ObjectConsumption, authorization.ActionDelete), s.DeleteConsumption)
	consumptions.POST("/:id/approve", s.authorize(authorization.ObjectConsumption, authorization.ActionApprove), s.ApproveConsumption)
	consumptions.GET("/:id/invoice", s.authorize(authorization.ObjectInvoice, authorization.ActionView), s.GetConsumptionInvoice)

	tiers := api.Group("/tiers")
	tiers.GET("", s.authorize(authorization.ObjectTier, authorization.ActionView), s.ListTiers)
	tiers.POST("", s.authorize(authorization.ObjectTier, authorization.ActionManage), s.CreateTier)
}
