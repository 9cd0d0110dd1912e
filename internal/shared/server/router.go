package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"resume-intake/internal/shared/config"
	"resume-intake/internal/shared/metrics"
	"resume-intake/internal/shared/server/middleware"
	"resume-intake/internal/shared/server/respond"
)

// RouteRegistrar is implemented by feature handlers.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps carries what the router needs from bootstrap.
type RouterDeps struct {
	Config     config.Config
	Handlers   []RouteRegistrar
	Components map[string]string
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = deps.Config.MaxUploadBytes

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)
	if deps.Config.RateLimitRPS > 0 {
		burst := deps.Config.RateLimitBurst
		if burst <= 0 {
			burst = int(deps.Config.RateLimitRPS) + 1
		}
		r.Use(middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: rateLimitGroup,
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: deps.Config.RateLimitRPS * 4, Burst: burst * 4},
				"SUBMIT":  {Rate: deps.Config.RateLimitRPS, Burst: burst},
			},
		}))
	}

	started := time.Now().UTC()
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{
			"ok":         true,
			"env":        deps.Config.Env,
			"startedAt":  started.Format(time.RFC3339),
			"components": deps.Components,
		})
	})
	for _, h := range deps.Handlers {
		if h != nil {
			h.RegisterRoutes(api)
		}
	}

	return r
}

func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return "DEFAULT"
	}
	switch c.FullPath() {
	case "/api/v1/resumes", "/api/v1/transcriptions", "/api/v1/search/reindex":
		return "SUBMIT"
	default:
		return "DEFAULT"
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
