package http

import (
	"log/slog"

	"github.com/geocoder89/accounts/internal/config"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/http/handlers"
	"github.com/geocoder89/accounts/internal/http/middlewares"
	"github.com/geocoder89/accounts/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

type AuthService interface {
	handlers.AuthService
	middlewares.RoleValidator
}

// Deps are the collaborators the router wires into handlers and guards.
// Prom and Gatherer may be nil, in which case /metrics is not mounted.
type Deps struct {
	Auth     AuthService
	Users    handlers.UserService
	Tokens   middlewares.TokenVerifier
	Ready    map[string]handlers.Pinger
	Draining func() bool
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if !cfg.IsDev() && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	if cfg.OTel.Enabled {
		r.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders(!cfg.IsDev()))
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health
	health := handlers.NewHealthHandler(deps.Ready, deps.Draining)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	guard := middlewares.NewAuthMiddleware(deps.Tokens, deps.Auth, log)
	authHandler := handlers.NewAuthHandler(deps.Auth, log)
	usersHandler := handlers.NewUsersHandler(deps.Users, log)

	// authenticate -> authorize role -> authorize ownership -> handler
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/signup", authHandler.SignUp)
		authGroup.POST("/refresh", guard.RequireRefreshToken(), authHandler.Refresh)
		authGroup.GET("/profile",
			guard.RequireAccessToken(),
			middlewares.RequireRoles(user.RoleUser, user.RoleAdmin),
			authHandler.Profile,
		)
	}

	users := r.Group("/users", guard.RequireAccessToken())
	{
		users.GET("/:id",
			middlewares.RequireRoles(user.RoleUser, user.RoleAdmin),
			middlewares.RequireOwnership("id", user.RoleAdmin),
			usersHandler.GetUser,
		)
		users.PUT("/:id",
			middlewares.RequireRoles(user.RoleUser),
			middlewares.RequireOwnership("id"),
			usersHandler.UpdateUser,
		)
		users.DELETE("/:id",
			middlewares.RequireRoles(user.RoleUser),
			middlewares.RequireOwnership("id"),
			usersHandler.DeleteUser,
		)
	}

	return r
}
