// Package httpapi is the HTTP and WebSocket edge of the hub: the gin router,
// the REST handlers, and the two upgrade endpoints feeding the broker and
// the voice manager.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/hermes-hub/hermes/internal/v1/access"
	"github.com/hermes-hub/hermes/internal/v1/auth"
	"github.com/hermes-hub/hermes/internal/v1/broker"
	"github.com/hermes-hub/hermes/internal/v1/config"
	"github.com/hermes-hub/hermes/internal/v1/health"
	"github.com/hermes-hub/hermes/internal/v1/middleware"
	"github.com/hermes-hub/hermes/internal/v1/store"
	"github.com/hermes-hub/hermes/internal/v1/voice"
)

// API bundles the edge's dependencies. One instance serves every route.
type API struct {
	cfg    *config.Config
	store  *store.Store
	auth   *auth.Service
	access *access.Resolver
	broker *broker.Broker
	voice  *voice.Manager
}

// New wires the API over its collaborators.
func New(cfg *config.Config, st *store.Store, authSvc *auth.Service, broker *broker.Broker, voiceMgr *voice.Manager) *API {
	return &API{
		cfg:    cfg,
		store:  st,
		auth:   authSvc,
		access: access.NewResolver(st),
		broker: broker,
		voice:  voiceMgr,
	}
}

// Router assembles the gin engine: middleware stack, observability routes,
// and the /api surface.
func (a *API) Router(readiness *health.Handler) *gin.Engine {
	if !a.cfg.DevelopmentMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CorrelationID())
	if a.cfg.OtelEnabled {
		r.Use(otelgin.Middleware("hermes-hub"))
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health/live", readiness.Liveness)
	r.GET("/health/ready", readiness.Readiness)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", a.handleRegister)
	authGroup.POST("/login", a.handleLogin)
	authGroup.POST("/logout", a.handleLogout)

	protected := api.Group("")
	protected.Use(auth.Middleware(a.auth))

	protected.GET("/users/@me", a.handleGetMe)
	protected.PATCH("/users/@me", a.handlePatchMe)
	protected.DELETE("/users/@me", a.handleDeleteMe)
	protected.GET("/users/:userID", a.handleGetUser)

	protected.POST("/servers", a.handleCreateServer)
	protected.GET("/servers", a.handleListServers)
	protected.GET("/servers/:serverID", a.handleGetServer)
	protected.PATCH("/servers/:serverID", a.handleUpdateServer)
	protected.DELETE("/servers/:serverID", a.handleDeleteServer)
	protected.POST("/servers/:serverID/join", a.handleJoinServer)
	protected.DELETE("/servers/:serverID/leave", a.handleLeaveServer)
	protected.POST("/servers/:serverID/transfer", a.handleTransferOwnership)

	protected.GET("/servers/:serverID/channels", a.handleListChannels)
	protected.POST("/servers/:serverID/channels", a.handleCreateChannel)
	protected.PATCH("/servers/:serverID/channels/:channelID", a.handleUpdateChannel)
	protected.DELETE("/servers/:serverID/channels/:channelID", a.handleDeleteChannel)

	protected.GET("/servers/:serverID/channels/:channelID/messages", a.handleListMessages)
	protected.POST("/servers/:serverID/channels/:channelID/messages", a.handleCreateMessage)
	protected.PATCH("/servers/:serverID/channels/:channelID/messages/:messageID", a.handleUpdateMessage)
	protected.DELETE("/servers/:serverID/channels/:channelID/messages/:messageID", a.handleDeleteMessage)
	protected.GET("/servers/:serverID/channels/:channelID/messages/ws", a.handleMessagesWS)

	protected.POST("/servers/:serverID/channels/:channelID/voice/join", a.handleVoiceJoin)
	protected.POST("/servers/:serverID/channels/:channelID/voice/leave", a.handleVoiceLeave)
	protected.GET("/servers/:serverID/channels/:channelID/voice/members", a.handleVoiceMembers)
	protected.GET("/servers/:serverID/channels/:channelID/voice/ws", a.handleVoiceWS)

	return r
}

// upgrader builds the WebSocket upgrader with the configured origin policy.
// Development mode accepts any origin.
func (a *API) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if a.cfg.DevelopmentMode {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // non-browser clients
			}
			for _, allowed := range a.cfg.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
}
