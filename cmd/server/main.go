package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/vidcast/internal/auth"
	"github.com/Nixie-Tech-LLC/vidcast/internal/config"
	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/device"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
	"github.com/Nixie-Tech-LLC/vidcast/internal/notify"
	"github.com/Nixie-Tech-LLC/vidcast/internal/playlist"
	"github.com/Nixie-Tech-LLC/vidcast/internal/redis"
)

var version = "dev"

const pingConcurrency = 16

var rootCmd = &cobra.Command{
	Use:           "vidcast",
	Short:         "Video signage server: admin API, device API and dashboard",
	Long:          `HTTP server for managing signage devices, videos and playlists. Commands: serve, migrate, sweep-sessions, create-user, assign-api-keys.`,
	RunE:          runServe, // default: same as "vidcast serve"
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and background workers",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE:      runMigrate,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep-sessions",
	Short: "Deactivate expired sessions once and exit",
	RunE:  runSweep,
}

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a dashboard user",
	RunE:  runCreateUser,
}

var assignKeysCmd = &cobra.Command{
	Use:   "assign-api-keys",
	Short: "Generate API keys for devices that have none",
	RunE:  runAssignKeys,
}

func init() {
	migrateCmd.Flags().Int("steps", 1, "number of migrations to roll back")

	createUserCmd.Flags().String("username", "", "login name (required)")
	createUserCmd.Flags().String("password", "", "password for local accounts")
	createUserCmd.Flags().String("email", "", "email address")
	createUserCmd.Flags().Bool("admin", false, "grant administrator rights")
	createUserCmd.Flags().String("provider", model.AuthProviderLocal, "local or ad")
	_ = createUserCmd.MarkFlagRequired("username")

	rootCmd.AddCommand(serveCmd, migrateCmd, sweepCmd, createUserCmd, assignKeysCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("vidcast exited")
	}
}

// openStore loads config, connects to PostgreSQL and applies pending migrations.
func openStore() (*config.Config, db.Store, error) {
	cfg, err := LoadEnvironment()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := db.Init(cfg.DatabaseURL); err != nil {
		return nil, nil, fmt.Errorf("db init: %w", err)
	}
	if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		return nil, nil, fmt.Errorf("db migrate: %w", err)
	}
	return cfg, db.NewStore(db.DB), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.DB.Close()
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := InitStorage(ctx, cfg)
	if err != nil {
		return err
	}

	var directory auth.Directory
	if cfg.LDAPURL != "" {
		directory = auth.NewLDAPDirectory(auth.LDAPConfig{URL: cfg.LDAPURL, Domain: cfg.LDAPDomain, Timeout: cfg.LDAPTimeout})
		log.Info().Str("url", cfg.LDAPURL).Msg("[auth] directory login enabled")
	}
	authSvc := auth.NewService(store, store, directory, auth.Config{SessionTTL: cfg.SessionTTL, MaxSessions: cfg.MaxSessions})

	var cache redis.ETagCache = redis.NewMemoryETagCache()
	if cfg.RedisAddress != "" {
		if err := redis.InitRedis(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddress).Msg("[redis] unreachable, using in-memory ETag cache")
		} else {
			cache = redis.NewETagCache(redis.Rdb, cfg.ETagTTL)
			log.Info().Str("addr", cfg.RedisAddress).Msg("[redis] ETag cache connected")
		}
	}

	var publisher notify.Publisher = notify.Noop{}
	if cfg.MQTTBrokerURL != "" {
		mqttPub, err := notify.NewMQTTPublisher(cfg.MQTTBrokerURL, cfg.MQTTClientID, cfg.DeviceTimeout)
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTTBrokerURL).Msg("[mqtt] broker unreachable, device notifications disabled")
		} else {
			defer mqttPub.Close()
			publisher = mqttPub
		}
	}

	playlists := playlist.NewService(store)
	agent := device.NewAgent(cfg.DeviceAgentPort, cfg.DeviceTimeout)
	pinger := device.NewPingChecker(store, agent, cfg.PingInterval, pingConcurrency)
	services := &Services{
		Config:    cfg,
		Store:     store,
		Storage:   files,
		Auth:      authSvc,
		Devices:   device.NewAuthenticator(store, cfg.JWTSecret, cfg.DeviceTokenTTL),
		Playlists: playlists,
		Agent:     agent,
		Pinger:    pinger,
		Cache:     cache,
		Publisher: publisher,
		StartedAt: time.Now(),
	}

	r := gin.New()
	if err := RegisterRoutes(r, services); err != nil {
		return fmt.Errorf("register routes: %w", err)
	}

	var workers sync.WaitGroup
	for _, run := range []func(context.Context){
		auth.NewSweeper(authSvc, cfg.SweepInterval).Run,
		pinger.Run,
		device.NewPlaylistChecker(store, playlists, cache, publisher, cfg.PlaylistCheckInterval).Run,
	} {
		workers.Add(1)
		go func(run func(context.Context)) {
			defer workers.Done()
			run(ctx)
		}(run)
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ServerAddress).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		stop()
		workers.Wait()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	workers.Wait()
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := LoadEnvironment()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	direction := "up"
	if len(args) == 1 {
		direction = args[0]
	}
	if direction == "down" {
		steps, _ := cmd.Flags().GetInt("steps")
		if err := db.RollbackMigrations(cfg.DatabaseURL, cfg.MigrationsPath, steps); err != nil {
			return err
		}
		log.Info().Int("steps", steps).Msg("migrations rolled back")
		return nil
	}
	if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		return err
	}
	log.Info().Msg("migrations applied")
	return nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.DB.Close()
	svc := auth.NewService(store, store, nil, auth.Config{SessionTTL: cfg.SessionTTL, MaxSessions: cfg.MaxSessions})
	n, err := svc.SweepExpired(cmd.Context())
	if err != nil {
		return err
	}
	log.Info().Int("deactivated", n).Msg("expired sessions swept")
	return nil
}

func runCreateUser(cmd *cobra.Command, _ []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	email, _ := cmd.Flags().GetString("email")
	admin, _ := cmd.Flags().GetBool("admin")
	provider, _ := cmd.Flags().GetString("provider")

	username = strings.TrimSpace(username)
	user := &model.User{Username: username, IsActive: true, IsAdmin: admin, AuthProvider: provider}
	switch provider {
	case model.AuthProviderLocal:
		if err := auth.ValidatePassword(password); err != nil {
			return err
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		user.PasswordHash = &hash
	case model.AuthProviderAD:
		if password != "" {
			return errors.New("directory accounts authenticate against LDAP; do not pass --password")
		}
	default:
		return fmt.Errorf("unknown provider %q, want local or ad", provider)
	}
	if email = strings.TrimSpace(email); email != "" {
		user.Email = &email
	}

	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.DB.Close()
	id, err := store.CreateUser(cmd.Context(), user)
	if err != nil {
		return err
	}
	log.Info().Int("user_id", id).Str("username", username).Bool("admin", admin).Msg("user created")
	return nil
}

func runAssignKeys(cmd *cobra.Command, _ []string) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.DB.Close()
	n, err := store.AssignMissingAPIKeys(cmd.Context(), device.NewAPIKey)
	if err != nil {
		return err
	}
	log.Info().Int("devices", n).Msg("API keys assigned")
	return nil
}
