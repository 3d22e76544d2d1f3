// a stupid package name...
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/marcopiovanello/dlp-bridge/server/config"
	"github.com/marcopiovanello/dlp-bridge/server/internal"
	"github.com/marcopiovanello/dlp-bridge/server/internal/cache"
	"github.com/marcopiovanello/dlp-bridge/server/internal/events"
	"github.com/marcopiovanello/dlp-bridge/server/internal/history"
	"github.com/marcopiovanello/dlp-bridge/server/internal/library"
	"github.com/marcopiovanello/dlp-bridge/server/internal/orchestrator"
	"github.com/marcopiovanello/dlp-bridge/server/internal/ytdlp"
	middlewares "github.com/marcopiovanello/dlp-bridge/server/middleware"
	"github.com/marcopiovanello/dlp-bridge/server/openid"
	"github.com/marcopiovanello/dlp-bridge/server/rest"
	dlpRPC "github.com/marcopiovanello/dlp-bridge/server/rpc"
	"github.com/marcopiovanello/dlp-bridge/server/user"
	"github.com/spf13/afero"

	bolt "go.etcd.io/bbolt"
)

const shutdownTimeout = 10 * time.Second

type serverConfig struct {
	cfg      *config.Config
	db       *bolt.DB
	hub      *events.Hub
	rest     *rest.ContainerArgs
	rpc      *dlpRPC.ContainerArgs
	openid   *openid.Provider
	log      *slog.Logger
	shutdown func()
}

func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	logWriters := []io.Writer{os.Stdout}
	closer := func() {}

	// file based logging
	if cfg.Logging.EnableFileLogging {
		f, err := os.OpenFile(cfg.Logging.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		logWriters = append(logWriters, f)
		closer = func() { f.Close() }
	}

	logger := slog.New(slog.NewTextHandler(io.MultiWriter(logWriters...), &slog.HandlerOptions{
		Level: cfg.Level(),
	}))

	return logger, closer, nil
}

func Run(ctx context.Context, cfg *config.Config) error {
	// ---- LOGGING ---------------------------------------------------
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	// make the new logger the default one with all the new writers
	slog.SetDefault(logger)
	// ----------------------------------------------------------------

	downloadPath, err := filepath.Abs(cfg.Paths.DownloadPath)
	if err != nil {
		return err
	}

	dbPath := filepath.Join(cfg.Paths.LocalDatabasePath, "bolt.db")

	boltdb, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", dbPath, err)
	}

	sessions, err := history.NewStore(boltdb)
	if err != nil {
		boltdb.Close()
		return err
	}

	var (
		fs   = afero.NewOsFs()
		bus  = events.NewBus()
		hub  = events.NewHub(cfg.Server.EventBuffer)
		tool = ytdlp.New(cfg.Paths.DownloaderPath, logger)
		mc   = cache.New(fs, downloadPath, logger)
	)

	lib, err := library.New(fs, library.Options{
		DownloadPath: downloadPath,
		PublicPath:   cfg.Paths.PublicPath,
		Workers:      cfg.Server.Workers,
	}, library.NewFFmpegThumbnailer(cfg.Paths.FFmpegPath), logger)
	if err != nil {
		boltdb.Close()
		return err
	}

	if err := subscribe(bus, mc, sessions, logger); err != nil {
		boltdb.Close()
		return err
	}

	orch := orchestrator.New(orchestrator.Options{
		Tool:         tool,
		Hub:          hub,
		Bus:          bus,
		Media:        mc,
		DownloadPath: downloadPath,
	}, logger)

	provider, err := openid.Configure(ctx, &cfg.OpenId)
	if err != nil {
		boltdb.Close()
		return fmt.Errorf("openid: %w", err)
	}

	scfg := serverConfig{
		cfg: cfg,
		db:  boltdb,
		hub: hub,
		rest: &rest.ContainerArgs{
			Orchestrator: orch,
			Cache:        mc,
			Library:      lib,
			History:      sessions,
			Hub:          hub,
		},
		rpc: &dlpRPC.ContainerArgs{
			Orchestrator: orch,
			Cache:        mc,
			Library:      lib,
			History:      sessions,
			Hub:          hub,
		},
		openid:   provider,
		log:      logger,
		shutdown: orch.Stop,
	}

	srv, err := newServer(scfg)
	if err != nil {
		boltdb.Close()
		return err
	}

	var (
		network = "tcp"
		address = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	)

	// support unix sockets
	if strings.HasPrefix(cfg.Server.Host, "/") {
		network = "unix"
		address = cfg.Server.Host
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		slog.Error("failed to listen", slog.String("err", err.Error()))
		boltdb.Close()
		return err
	}

	slog.Info("dlp-bridge started",
		slog.String("address", address),
		slog.String("download_path", downloadPath),
		slog.String("yt-dlp", tool.Path()),
	)

	return serve(ctx, srv, listener, &scfg)
}

// serve blocks until ctx is done or the listener fails. Either way the
// orchestrator is stopped and the hub and bolt are closed before it returns.
func serve(ctx context.Context, srv *http.Server, listener net.Listener, scfg *serverConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		gracefulShutdown(ctx, srv, scfg)
	}()

	err := srv.Serve(listener)
	if err != http.ErrServerClosed {
		slog.Warn("http server stopped", slog.Any("err", err))
		cancel()
		<-done
		return err
	}

	<-done
	return nil
}

// subscribe wires the internal topics: fetched metadata becomes the cached
// selection and finished sessions land in the history.
func subscribe(bus *events.Bus, mc *cache.Cache, sessions *history.Store, log *slog.Logger) error {
	err := bus.OnMetadataFetched(func(info *internal.MediaInfo) {
		if err := mc.Save(info); err != nil {
			log.Error("failed to cache media info", slog.Any("err", err))
		}
	})
	if err != nil {
		return err
	}

	return bus.OnSessionFinished(func(rec internal.SessionRecord) {
		if err := sessions.Save(rec); err != nil {
			log.Error("failed to record session", slog.String("id", rec.Id), slog.Any("err", err))
		}
	})
}

func newServer(c serverConfig) (*http.Server, error) {
	rpcServer, err := dlpRPC.Container(c.rpc, c.log)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	r.Use(corsMiddleware.Handler)
	// use in dev
	// r.Use(middleware.Logger)

	// a nil *Provider must not reach the Guard interface
	var guard middlewares.Guard
	if c.openid != nil {
		guard = c.openid
	}
	authenticated := middlewares.ApplyAuthenticationByConfig(c.cfg, guard)

	h := rest.Container(c.rest, c.log)

	routes := func(r chi.Router) {
		// Authentication routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", user.Login(&c.cfg.Authentication))
			r.Get("/logout", user.Logout)

			if c.openid != nil {
				r.Route("/openid", func(r chi.Router) {
					r.Get("/login", c.openid.Login)
					r.Get("/signin", c.openid.SignIn)
					r.Get("/logout", c.openid.Logout)
				})
			}
		})

		// RPC handlers
		r.Route("/rpc", func(r chi.Router) {
			r.Use(authenticated)
			dlpRPC.ApplyRouter(rpcServer)(r)
		})

		// REST API handlers
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(authenticated)
			rest.ApplyRouter(h)(r)
		})

		// Event feed
		r.With(authenticated).Get("/events/ws", h.Events)
	}

	if base := strings.TrimSuffix(c.cfg.Server.BaseURL, "/"); base != "" {
		r.Route(base, routes)
	} else {
		routes(r)
	}

	return &http.Server{Handler: r}, nil
}

func gracefulShutdown(ctx context.Context, srv *http.Server, cfg *serverConfig) {
	<-ctx.Done()
	slog.Info("shutdown signal received")

	cfg.shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("forced http shutdown", slog.Any("err", err))
	}

	// ends open event feeds
	cfg.hub.Close()
	cfg.db.Close()
}
