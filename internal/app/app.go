package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/deckly-app/deckly/internal/analytics"
	"github.com/deckly-app/deckly/internal/config"
	"github.com/deckly-app/deckly/internal/db"
	"github.com/deckly-app/deckly/internal/generation"
	"github.com/deckly-app/deckly/internal/http/api/admin"
	"github.com/deckly-app/deckly/internal/http/api/front"
	"github.com/deckly-app/deckly/internal/proposal"
	"github.com/deckly-app/deckly/internal/quota"
	"github.com/deckly-app/deckly/internal/ratelimit"
	internalsettings "github.com/deckly-app/deckly/internal/settings"
	"github.com/deckly-app/deckly/internal/usage"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultPort           = 8318
	shutdownTimeout       = 10 * time.Second
	settingsRefreshEvery  = 30 * time.Second
	progressHubBufferSize = 32
	readHeaderTimeout     = 10 * time.Second
)

// OpenDatabase resolves the DSN from cfg, opens it and runs migrations.
func OpenDatabase(cfg config.AppConfig) (*gorm.DB, error) {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}
	return conn, nil
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	conn, err := OpenDatabase(cfg)
	if err != nil {
		return err
	}
	return internalsettings.Refresh(ctx, conn)
}

// Components are the long-lived services a running server shares.
type Components struct {
	DB        *gorm.DB
	JWT       config.JWTConfig
	Quota     *quota.Service
	Proposals *proposal.Service
	Analytics *analytics.Service
	Throttle  *ratelimit.Manager
	Timeout   time.Duration
}

// NewComponents builds services around an open database and generator.
func NewComponents(conn *gorm.DB, jwtCfg config.JWTConfig, generator generation.Generator, timeout time.Duration) *Components {
	quotaSvc := quota.NewService(conn)
	hub := proposal.NewHub(progressHubBufferSize)
	proposals := proposal.NewService(conn, quotaSvc, generator,
		proposal.WithHub(hub),
		proposal.WithReporter(proposal.NewDBReporter(conn)),
	)
	return &Components{
		DB:        conn,
		JWT:       jwtCfg,
		Quota:     quotaSvc,
		Proposals: proposals,
		Analytics: analytics.NewService(conn),
		Throttle:  ratelimit.NewManager(nil, nil, nil),
		Timeout:   timeout,
	}
}

// NewEngine builds the gin engine with every route registered.
func NewEngine(c *Components) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())

	admin.RegisterAdminRoutes(engine, c.DB, c.JWT, admin.Services{
		Quota:     c.Quota,
		Proposals: c.Proposals,
		Analytics: c.Analytics,
	})
	front.RegisterFrontRoutes(engine, c.DB, c.JWT, front.Services{
		Quota:             c.Quota,
		Proposals:         c.Proposals,
		Throttle:          c.Throttle,
		GenerationTimeout: c.Timeout,
	})
	engine.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return engine
}

// RunServer boots the API server and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	serverCfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return err
	}
	configureLogging(serverCfg.LogLevel)

	jwtCfg, err := config.LoadJWTConfig(configPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(jwtCfg.Secret) == "" {
		return fmt.Errorf("app: jwt secret is not configured (set jwt.secret or %s)", config.EnvJWTSecret)
	}
	genCfg, err := config.LoadGenerationConfig(configPath)
	if err != nil {
		return err
	}

	conn, err := OpenDatabase(cfg)
	if err != nil {
		return err
	}
	if errRefresh := internalsettings.Refresh(ctx, conn); errRefresh != nil {
		return fmt.Errorf("app: load settings: %w", errRefresh)
	}
	if initialized, errInit := HasAdminInitialized(conn); errInit != nil {
		return errInit
	} else if !initialized {
		log.Warn("no admin account exists yet; create one with `deckly admin create`")
	}

	generator, err := generation.New(ctx, genCfg)
	if err != nil {
		return err
	}
	model := genCfg.Model
	if genCfg.Provider == config.ProviderHTTP {
		model = ""
	}
	recorded := usage.NewRecorder(conn, generator, genCfg.Provider, model)
	components := NewComponents(conn, jwtCfg, recorded, genCfg.Timeout)
	defer func() {
		if errClose := components.Throttle.Close(); errClose != nil {
			log.WithError(errClose).Warn("close throttle backend failed")
		}
	}()

	engine := NewEngine(components)
	handler := cors.New(cors.Options{
		AllowedOrigins:   serverCfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	}).Handler(engine)

	if serverCfg.Port <= 0 {
		serverCfg.Port = port
	}
	if serverCfg.Port <= 0 {
		serverCfg.Port = defaultPort
	}
	addr := net.JoinHostPort(serverCfg.Host, strconv.Itoa(serverCfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	refreshCtx, stopRefresh := context.WithCancel(ctx)
	defer stopRefresh()
	go refreshSettingsLoop(refreshCtx, conn)

	errServe := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr":       addr,
			"config":     configPath,
			"generation": genCfg.Provider,
		}).Info("starting deckly server")
		if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			errServe <- errListen
			return
		}
		errServe <- nil
	}()

	select {
	case errListen := <-errServe:
		return errListen
	case <-ctx.Done():
	}

	log.Info("shutting down deckly server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		log.WithError(errShutdown).Error("server shutdown error")
	}
	components.Proposals.Wait()
	return <-errServe
}

// refreshSettingsLoop keeps the settings snapshot current for other replicas' writes.
func refreshSettingsLoop(ctx context.Context, conn *gorm.DB) {
	ticker := time.NewTicker(settingsRefreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if errRefresh := internalsettings.Refresh(ctx, conn); errRefresh != nil && ctx.Err() == nil {
				log.WithError(errRefresh).Warn("refresh settings snapshot failed")
			}
		}
	}
}

func configureLogging(level string) {
	parsed, errParse := log.ParseLevel(strings.TrimSpace(level))
	if errParse != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if parsed >= log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
}

// requestLogger logs one line per request through logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Info("request")
		default:
			entry.Debug("request")
		}
	}
}
