package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/auth"
	"github.com/Nixie-Tech-LLC/vidcast/internal/config"
	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/device"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api"
	authapi "github.com/Nixie-Tech-LLC/vidcast/internal/http/api/admin/auth/endpoints"
	controlapi "github.com/Nixie-Tech-LLC/vidcast/internal/http/api/admin/control/endpoints"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api/admin/control/utils"
	clientapi "github.com/Nixie-Tech-LLC/vidcast/internal/http/api/client/endpoints"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/ui"
	"github.com/Nixie-Tech-LLC/vidcast/internal/metrics"
	"github.com/Nixie-Tech-LLC/vidcast/internal/notify"
	"github.com/Nixie-Tech-LLC/vidcast/internal/playlist"
	"github.com/Nixie-Tech-LLC/vidcast/internal/redis"
	"github.com/Nixie-Tech-LLC/vidcast/internal/storage"
)

// Services is everything the router needs, built once in main.
type Services struct {
	Config    *config.Config
	Store     db.Store
	Storage   storage.Storage
	Auth      *auth.Service
	Devices   *device.Authenticator
	Playlists *playlist.Service
	Agent     *device.Agent
	Pinger    *device.PingChecker
	Cache     redis.ETagCache
	Publisher notify.Publisher
	StartedAt time.Time
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
			"If-None-Match",
		},
		ExposeHeaders: []string{
			"Content-Length",
			"ETag",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOriginFunc = func(origin string) bool { return true }
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, s *Services) error {
	cfg := s.Config
	cookies := middleware.CookieConfig{Secure: cfg.CookieSecure, TTL: cfg.SessionTTL}

	if err := api.RegisterValidators(); err != nil {
		return err
	}
	r.MaxMultipartMemory = 32 << 20

	trusted, err := middleware.ParseNetworks(cfg.AllowedNetworks)
	if err != nil {
		return err
	}

	gate := middleware.NewGate(middleware.DefaultPolicy(), s.Auth, s.Devices, cookies)
	r.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		cors.New(corsConfig(cfg.CORSOrigins)),
		metrics.PrometheusMiddleware(),
		gate.Middleware(),
	)

	internalOnly := middleware.AllowNetworks(trusted)
	r.GET("/metrics", internalOnly, metrics.MetricsHandler)
	r.GET("/api/info", internalOnly, infoHandler(s))
	r.GET("/health", healthHandler(s.Store))
	r.GET("/api/health", healthHandler(s.Store))

	loginLimiter := middleware.NewIPRateLimiter(cfg.LoginRatePerMinute, cfg.LoginRatePerMinute)

	notifier := utils.NewNotifier(s.Store, s.Cache, s.Publisher)
	deps := &controlapi.Deps{
		Store:     s.Store,
		Playlists: s.Playlists,
		Storage:   s.Storage,
		Agent:     s.Agent,
		Pinger:    s.Pinger,
		Publisher: s.Publisher,
		Notifier:  notifier,
	}
	maxUpload := int64(cfg.MaxUploadMB) << 20

	api.MountGroup(r, api.GroupConfig{
		Prefix:     "/api",
		Middleware: []gin.HandlerFunc{loginLimiter.Middleware()},
	},
		authapi.AuthLoginModule(s.Auth, s.Store, cookies),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api",
	},
		// session endpoints
		authapi.AuthPublicModule(s.Auth, s.Store, cookies),
		authapi.AuthSessionModule(s.Auth, s.Store, cookies),
		// control modules
		controlapi.DeviceModule(deps),
		controlapi.VideoModule(deps, maxUpload),
		controlapi.PlaylistModule(deps),
		controlapi.StoreModule(deps),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api",
		AdminOnly: true,
	},
		authapi.UserAdminModule(s.Auth, s.Store),
		controlapi.StoreAdminModule(deps),
	)

	client := clientapi.NewClientController(s.Store, s.Devices, s.Playlists, s.Storage, s.Cache)
	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api/client",
	},
		clientapi.ClientModule(client),
	)

	pages, err := ui.New(s.Auth, s.Store, cookies)
	if err != nil {
		return err
	}
	pages.Register(r, loginLimiter.Middleware())
	return nil
}

func healthHandler(store db.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("[health] database unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "ok", "time": time.Now().UTC()})
	}
}

func infoHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, mqttEnabled := s.Publisher.(*notify.MQTTPublisher)
		_, redisEnabled := s.Cache.(*redis.RedisETagCache)
		c.JSON(http.StatusOK, gin.H{
			"name":            "vidcast",
			"version":         version,
			"environment":     s.Config.Environment,
			"storage_backend": s.Config.StorageBackend,
			"ldap_enabled":    s.Config.LDAPURL != "",
			"mqtt_enabled":    mqttEnabled,
			"redis_enabled":   redisEnabled,
			"uptime_seconds":  int(time.Since(s.StartedAt).Seconds()),
		})
	}
}
