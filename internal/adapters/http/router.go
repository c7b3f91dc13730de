package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/adapters/signal"
	"github.com/dkeye/Presence/internal/app/orch"
	"github.com/dkeye/Presence/internal/config"
	"github.com/dkeye/Presence/internal/domain"
	rest "github.com/dkeye/Presence/internal/transport/http"
)

const (
	sessionName     = "PresenceSessions"
	sessionTokenKey = "token"
)

// TokenValidator turns a bearer token into the user it names.
type TokenValidator interface {
	Validate(raw string) (*domain.User, error)
}

func tokenFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if t := c.Query("token"); t != "" {
		return t
	}
	if t, ok := sessions.Default(c).Get(sessionTokenKey).(string); ok {
		return t
	}
	return ""
}

// AuthMiddleware resolves the caller from a bearer header, a token query
// parameter or the cookie session, in that order.
func AuthMiddleware(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.Validate(tokenFrom(c))
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("auth rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(rest.UserKey, user)
		c.Next()
	}
}

// createSession stores a validated token in the cookie session so that
// browsers can open the socket without a header.
func createSession(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Token string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
			return
		}
		user, err := auth.Validate(req.Token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		s := sessions.Default(c)
		s.Set(sessionTokenKey, req.Token)
		if err := s.Save(); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

type Deps struct {
	Orch     *orch.Orchestrator
	Handlers *rest.Handlers
	Auth     TokenValidator
	Gatherer prometheus.Gatherer
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.POST("/session", createSession(deps.Auth))

	authed := api.Group("", AuthMiddleware(deps.Auth))

	ctrl := signal.NewSignalWSController(deps.Orch, cfg.ReadLimit, cfg.PingPeriod)
	authed.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	h := deps.Handlers
	authed.GET("/rooms", h.ListRooms)
	authed.POST("/rooms", h.AddRoom)
	authed.POST("/rooms/:id/reserve", h.Reserve)
	authed.GET("/progress", h.GetProgress)
	authed.POST("/progress/events", h.PostProgressEvent)
	authed.PUT("/users/:id/github", h.PutCredential)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
