package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"redbead/internal/config"
	"redbead/internal/pkg/limiter"
	"redbead/internal/pkg/logx"
	"redbead/internal/repository/kv"
	"redbead/internal/service/cartcache"
	"redbead/internal/session"
)

// BackendFactory returns a backend client that acts with the credentials
// of the request's shopper.
type BackendFactory func(r *http.Request) session.Backend

// Deps holds the collaborators of the HTTP surface.
type Deps struct {
	Config  config.Config
	Storage kv.Store
	Carts   *cartcache.Cache
	Backend BackendFactory
	Clock   clockwork.Clock
	Limiter *limiter.IPRateLimiter
	Mounts  *Mounts
	Logger  zerolog.Logger
}

// buildRouter wires routes for the API.
func buildRouter(deps Deps) (*gin.Engine, error) {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Limiter == nil {
		deps.Limiter = limiter.NewIPRateLimiter(rate.Limit(deps.Config.RateLimitPerSecond), deps.Config.RateLimitBurst)
	}
	if deps.Mounts == nil {
		deps.Mounts = NewMounts()
	}

	if !deps.Config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logx.RequestLogger(deps.Logger))
	router.Use(cors.New(corsConfig(deps.Config.AllowedOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Storage))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &handlers{deps: deps, upgrader: newUpgrader(deps.Config.AllowedOrigins)}

	api := router.Group("/api", deps.Limiter.Middleware(), deviceMiddleware(deps.Config.SecureCookies))
	api.GET("/guest-session", h.getGuestSession)
	api.PUT("/guest-session", h.putGuestSession)
	api.DELETE("/guest-session", h.deleteGuestSession)
	api.GET("/checkout/:sessionId/state", h.getCheckoutState)
	api.PATCH("/checkout/:sessionId/state", h.patchCheckoutState)
	api.DELETE("/checkout/:sessionId/state", h.deleteCheckoutState)
	api.GET("/cart", h.getCart)

	router.GET("/ws", deps.Limiter.Middleware(), deviceMiddleware(deps.Config.SecureCookies), h.serveWS)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func newUpgrader(origins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			_, ok := allowed[r.Header.Get("Origin")]
			return ok
		},
	}
}
