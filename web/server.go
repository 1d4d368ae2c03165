// Package web serves the dashboard to a browser.
//
// Every request to a protected route is one page instance: the stored session
// goes through the auth gate again, and a rejection redirects to /login.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/etnz/loandash/api"
	"github.com/etnz/loandash/dashboard"
	"github.com/etnz/loandash/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Backend is what the web dashboard needs from the backend. *api.Client is one.
type Backend interface {
	dashboard.Backend
	Login(ctx context.Context, email, password string) (api.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// Options configure a Server.
type Options struct {
	Public      bool
	FlashTTL    time.Duration
	CORSOrigins []string
	// Gatherer backs /metrics, prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer
	Now      func() time.Time
	Logger   *zap.Logger
}

// Server is the web dashboard.
type Server struct {
	backend Backend
	store   session.Store
	opts    Options
	logger  *zap.Logger

	flash   *cache.Cache
	uploads *semaphore.Weighted // one upload at a time across requests
	router  *gin.Engine
}

// New returns a Server for the session in store.
func New(backend Backend, store session.Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.FlashTTL <= 0 {
		opts.FlashTTL = time.Minute
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		backend: backend,
		store:   store,
		opts:    opts,
		logger:  opts.Logger.Named("web"),
		flash:   cache.New(opts.FlashTTL, 2*opts.FlashTTL),
		uploads: semaphore.NewWeighted(1),
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler of the dashboard.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.SetHTMLTemplate(template.Must(template.New("").ParseFS(templatesFS, "templates/*.html")))

	if len(s.opts.CORSOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = s.opts.CORSOrigins
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
		router.Use(cors.New(corsConfig))
	}
	router.Use(zapLogger(s.logger))
	router.Use(gin.Recovery())

	router.GET("/", s.showDashboard)
	router.POST("/upload", s.upload)
	router.GET("/login", s.showLogin)
	router.POST("/login", s.login)
	router.POST("/logout", s.logout)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	return router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// zapLogger logs every request.
func zapLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String(), fields...)
			return
		}
		logger.Info("request", fields...)
	}
}
