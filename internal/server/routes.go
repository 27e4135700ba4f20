package server

import (
	"log/slog"
	"net/http"

	"taskhub/internal/auth"
	"taskhub/internal/comments"
	"taskhub/internal/config"
	"taskhub/internal/database"
	"taskhub/internal/labels"
	"taskhub/internal/reminder"
	"taskhub/internal/session"
	"taskhub/internal/templates"
	"taskhub/internal/tenant"
	"taskhub/internal/todos"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the API routes need.
type Deps struct {
	Config    *config.Config
	DB        database.Service
	Sessions  session.Manager
	Reminders reminder.Runner
	Logger    *slog.Logger
}

// NewRouter builds the gin engine serving the whole API.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logging(d.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.Config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
	}))

	r.GET("/health", healthHandler(d.DB))

	cookie := session.CookieOptions{
		Name:   d.Config.Session.CookieName,
		Secure: d.Config.Session.Secure,
	}
	guard := tenant.RequireSession(d.Sessions, cookie, d.Logger)

	api := r.Group("/api")

	authHandler := auth.NewHandler(auth.NewService(d.DB, d.Logger), d.Sessions, cookie, d.Logger)
	authHandler.RegisterRoutes(api.Group("/auth"), guard)

	reminder.NewHandler(d.Reminders, d.Config.Reminder.CronSecret, d.Logger).
		RegisterRoutes(api.Group("/cron"))

	protected := api.Group("", guard)

	todoRepo := todos.NewRepository(d.DB)
	todoRoutes := protected.Group("/todos")
	todos.NewHandler(todoRepo).RegisterRoutes(todoRoutes)
	comments.RegisterRoutes(todoRoutes, protected.Group("/comments"), comments.NewService(d.DB))

	labels.NewHandler(labels.NewRepository(d.DB)).RegisterRoutes(protected.Group("/labels"))
	templates.NewHandler(templates.NewRepository(d.DB), todoRepo).RegisterRoutes(protected.Group("/templates"))

	return r
}

func healthHandler(db database.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := db.Health(c.Request.Context())
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"database": stats})
	}
}
