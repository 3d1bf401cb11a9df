package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/tourhub/internal/cache"
	"github.com/geocoder89/tourhub/internal/domain/user"
	"github.com/geocoder89/tourhub/internal/http/handlers"
	"github.com/geocoder89/tourhub/internal/http/middlewares"
	"github.com/geocoder89/tourhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type UsersRepo interface {
	handlers.AccountStore
	handlers.UsersStore
}

// Deps is everything the HTTP surface needs. Jobs may be nil, which drops
// the admin job routes; Metrics may be nil, which drops /metrics.
type Deps struct {
	Log         *slog.Logger
	Env         string
	ServiceName string
	CORSOrigins []string
	LoginRate   int // attempts per minute per IP on /auth/login and /auth/signup
	BookingRate int // booking creations per minute per account

	// Limiters are swept by their owner's Run; nil builds unswept ones
	// from the rates above.
	LoginLimiter   *middlewares.RateLimiter
	BookingLimiter *middlewares.RateLimiter

	Prom    *observability.Prom
	Metrics prometheus.Gatherer

	Gate        middlewares.Authenticator
	Hasher      handlers.PasswordHasher
	Tokens      handlers.TokenIssuer
	Revocations handlers.TokenRevoker

	Users     UsersRepo
	Tours     handlers.ToursStore
	Bookings  handlers.BookingsStore
	Feedbacks handlers.FeedbacksStore
	Jobs      handlers.AdminJobsRepo

	TourCache *cache.Cache
	Health    []handlers.Dependency
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" && d.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.ServiceName == "" {
		d.ServiceName = "tourhub"
	}
	handlers.RegisterValidators()

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(d.ServiceName))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders(d.Env))
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(middlewares.DefaultMaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// ops
	health := handlers.NewHealthHandler(d.Health...)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(d.Gate, d.Prom)
	requireAuth := authMW.RequireAuth()
	adminOnly := authMW.RequireRole(user.AdminOnly)

	// auth
	loginRate := d.LoginRate
	if loginRate <= 0 {
		loginRate = 20
	}
	loginLimiter := d.LoginLimiter
	if loginLimiter == nil {
		loginLimiter = middlewares.NewRateLimiter(loginRate, time.Minute)
	}
	byIP := loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP)

	bookingLimiter := d.BookingLimiter
	if bookingLimiter == nil {
		bookingRate := d.BookingRate
		if bookingRate <= 0 {
			bookingRate = 30
		}
		bookingLimiter = middlewares.NewRateLimiter(bookingRate, time.Minute)
	}
	byAccount := bookingLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP)

	authHandler := handlers.NewAuthHandler(d.Users, d.Hasher, d.Tokens, d.Revocations, d.Log, d.Prom)
	authGroup := r.Group("/auth")
	authGroup.POST("/signup", byIP, authHandler.Signup)
	authGroup.POST("/login", byIP, authHandler.Login)
	authGroup.POST("/logout", requireAuth, authHandler.Logout)
	authGroup.GET("/me", requireAuth, authHandler.Me)

	// users (admin)
	usersHandler := handlers.NewUsersHandler(d.Users, d.Hasher, d.Log)
	users := r.Group("/user", requireAuth, adminOnly)
	users.GET("", usersHandler.List)
	users.GET("/:id", usersHandler.GetByID)
	users.POST("", usersHandler.Create)
	users.PUT("/:id", usersHandler.Update)
	users.DELETE("/:id", usersHandler.Delete)

	// tours: reads are public, writes admin only
	toursHandler := handlers.NewToursHandler(d.Tours, d.TourCache, d.Log)
	tours := r.Group("/tour")
	tours.GET("", toursHandler.List)
	tours.GET("/stats", toursHandler.Stats)
	tours.GET("/stats/detailed", toursHandler.DetailedStats)
	tours.GET("/:id", toursHandler.GetByID)
	tours.POST("", requireAuth, adminOnly, toursHandler.Create)
	tours.PUT("/:id", requireAuth, adminOnly, toursHandler.Update)
	tours.DELETE("/:id", requireAuth, adminOnly, toursHandler.Delete)

	// booking requests
	bookingsHandler := handlers.NewBookingsHandler(d.Bookings, d.Log)
	requests := r.Group("/request", requireAuth)
	requests.GET("", bookingsHandler.List)
	requests.GET("/:id", bookingsHandler.GetByID)
	requests.POST("", byAccount, bookingsHandler.Create)
	requests.PUT("/:id", bookingsHandler.Update)
	requests.DELETE("/:id", bookingsHandler.Delete)

	// feedback
	feedbacksHandler := handlers.NewFeedbacksHandler(d.Feedbacks, d.Log)
	optionalAuth := authMW.OptionalAuth()
	feedback := r.Group("/feedback")
	feedback.GET("", optionalAuth, feedbacksHandler.List)
	feedback.GET("/:id", optionalAuth, feedbacksHandler.GetByID)
	feedback.POST("", requireAuth, feedbacksHandler.Create)
	feedback.PUT("/:id", requireAuth, feedbacksHandler.Update)
	feedback.DELETE("/:id", requireAuth, feedbacksHandler.Delete)

	// admin jobs
	if d.Jobs != nil {
		jobsHandler := handlers.NewAdminJobsHandler(d.Jobs, d.Log)
		admin := r.Group("/admin", requireAuth, adminOnly)
		admin.GET("/jobs", jobsHandler.List)
		admin.GET("/jobs/:id", jobsHandler.GetByID)
		admin.POST("/jobs/:id/retry", jobsHandler.Retry)
		admin.POST("/jobs/retry-failed", jobsHandler.RetryFailed)
	}

	return r
}
