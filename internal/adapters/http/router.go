package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/adapters/auth"
	chatws "github.com/dkeye/Huddle/internal/adapters/chat"
	"github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/domain"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

type Deps struct {
	Orch   *orch.Orchestrator
	Signal *signal.Controller
	Chat   *chatws.Controller
	Tokens *auth.JWT
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
	r.Use(sessions.Sessions("HuddleSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/health", func(c *gin.Context) {
		if deps.Orch.Pool.Terminating() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "terminating"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")

	api := r.Group("/api")

	// Existing accounts log in by id; without one, a display name mints a
	// fresh anonymous user.
	api.POST("/auth/login", func(c *gin.Context) {
		var body struct {
			UserID      string `json:"user_id"`
			DisplayName string `json:"display_name"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
			return
		}
		uid := domain.UserID(body.UserID)
		if uid == "" {
			u, err := domain.NewUser(body.DisplayName)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			uid = u.ID
		}
		token, err := deps.Tokens.Issue(uid)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("token issue failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user_id": string(uid)})
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": deps.Orch.Rooms.List()})
	})

	api.GET("/rooms/:name/capabilities", func(c *gin.Context) {
		caps, err := deps.Orch.Capabilities(domain.RoomName(c.Param("name")))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rtpCapabilities": caps})
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	})

	api.GET("/ws/chat", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws chat endpoint hit")
		deps.Chat.HandleChat(ctx, c)
	})

	return r
}
