package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/farellandr/hadir/internal/handlers"
	"github.com/farellandr/hadir/internal/middleware"
	"github.com/farellandr/hadir/internal/services"
	"github.com/farellandr/hadir/internal/worker"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Deps struct {
	DB          *gorm.DB
	Services    *services.Services
	Enqueuer    worker.Enqueuer
	Redis       *redis.Client
	JWTSecret   string
	CORSOrigins []string
	UploadDir   string
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	if len(deps.CORSOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = deps.CORSOrigins
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "apikey", "x-client-info"}
	r.Use(cors.New(corsConfig))

	if deps.UploadDir != "" {
		r.Static("/uploads", deps.UploadDir)
	}

	setupRoutes(r, deps)
	return r
}

func setupRoutes(r *gin.Engine, deps Deps) {
	r.Use(middleware.DatabaseMiddleware(deps.DB))
	r.Use(middleware.ServicesMiddleware(deps.Services))
	r.Use(middleware.EnqueuerMiddleware(deps.Enqueuer))

	r.GET("/health", health(deps))

	auth := middleware.JWTAuthMiddleware(deps.JWTSecret)
	adminOnly := middleware.AdminOnly()

	functions := r.Group("/functions/v1")
	functions.Use(auth, adminOnly)
	{
		functions.POST("/generateDynamicQR", handlers.GenerateDynamicQR)
	}

	public := r.Group("/v1")
	{
		public.POST("/register", handlers.Register)
		public.POST("/login", handlers.Login)
		public.POST("/payments/notification", handlers.PaymentNotification)

		eventPublic := public.Group("/events")
		{
			eventPublic.GET("", handlers.ListEvents)
			eventPublic.GET("/:id", handlers.GetEvent)
		}
	}

	protected := r.Group("/v1")
	protected.Use(auth)
	{
		protected.GET("/me", handlers.GetProfile)
		protected.GET("/me/certificates", handlers.MyCertificates)
		protected.GET("/payments/:id", handlers.GetPayment)

		eventProtected := protected.Group("/events/:id")
		{
			eventProtected.POST("/register", handlers.RegisterForEvent)
			eventProtected.GET("/registration", handlers.GetMyRegistration)
			eventProtected.POST("/payments", handlers.CreatePayment)
			eventProtected.POST("/attendance", handlers.ScanAttendance)
		}
	}

	admin := r.Group("/v1/admin")
	admin.Use(auth, adminOnly)
	{
		admin.POST("/events", handlers.CreateEvent)
		admin.PUT("/events/:id", handlers.UpdateEvent)
		admin.DELETE("/events/:id", handlers.DeleteEvent)

		admin.GET("/events/:id/qr/static", handlers.StaticQR)
		admin.GET("/events/:id/qr/stream", handlers.StreamQR)
		admin.GET("/events/:id/attendance", handlers.AttendanceReport)

		admin.GET("/events/:id/certificate-template", handlers.GetCertificateTemplate)
		admin.PUT("/events/:id/certificate-template", handlers.PutCertificateTemplate)
		admin.GET("/events/:id/eligible", handlers.ListEligible)
		admin.POST("/events/:id/certificates", handlers.GenerateCertificates)
		admin.POST("/events/:id/certificates/:userId", handlers.GenerateCertificate)

		admin.POST("/uploads", handlers.UploadAsset)
	}
}

func health(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"database": "ok"}
		code := http.StatusOK

		sqlDB, err := deps.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}

		if deps.Redis != nil {
			status["redis"] = "ok"
			if err := deps.Redis.Ping(ctx).Err(); err != nil {
				status["redis"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}

		c.JSON(code, status)
	}
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func Start(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
