package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/celerix-dev/robot-ops/internal/api"
	"github.com/celerix-dev/robot-ops/internal/auth"
	"github.com/celerix-dev/robot-ops/internal/config"
	"github.com/celerix-dev/robot-ops/internal/engine"
	"github.com/celerix-dev/robot-ops/internal/report"
	"github.com/celerix-dev/robot-ops/internal/server"
	"github.com/celerix-dev/robot-ops/internal/vault"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const sweepInterval = 10 * time.Minute

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "robotops-stored",
		Short:         "robot-ops state daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv(config.EnvPrefix+"_CONFIG"), "YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	})
	root.AddCommand(newMigrateCommand(&configPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("robotops-stored failed")
		stop()
		os.Exit(1)
	}
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.ConfigureLogging()
	log := logrus.WithField("component", "daemon")
	if !log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("finalizing store writes")
		if err := store.Close(); err != nil {
			log.WithError(err).Error("error closing store")
		}
	}()

	key, err := cfg.TokenKey()
	if err != nil {
		return err
	}
	if cfg.Auth.TokenKey == "" {
		log.Warn("auth.token_key not set, sessions will not survive a restart")
	}
	tokens, err := auth.NewTokens(key, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	svc := auth.NewService(store, tokens)

	if b := cfg.Bootstrap; b.SuperAdminEmail != "" {
		if err := svc.EnsureSuperAdmin(ctx, b.SuperAdminEmail, b.SuperAdminName, b.SuperAdminPassword); err != nil {
			return err
		}
	}

	srv := server.New(&api.Handler{
		Store:        store,
		Reports:      report.New(store),
		Auth:         svc,
		CookieName:   cfg.Auth.CookieName,
		SecureCookie: cfg.Auth.SecureCookie,
	}, logrus.WithField("component", "http"))

	if cfg.HTTP.TLS {
		log.Info("generating self-signed certificate")
		cert, err := vault.GenerateSelfSignedCert()
		if err != nil {
			return errors.Wrap(err, "generate TLS certificate")
		}
		srv.SetCertificate(cert)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Listen(cfg.HTTP.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := tokens.Sweep(); n > 0 {
					log.WithField("count", n).Debug("swept expired revocations")
				}
			}
		}
	})
	return g.Wait()
}

// openStore builds the backend selected by the store section.
func openStore(sc config.StoreConfig) (engine.Store, error) {
	if sc.Driver == config.DriverPostgres {
		return engine.OpenPostgres(sc.PostgresDSN)
	}

	var opts []engine.MemOption
	switch sc.Persistence {
	case config.PersistJSON:
		p, err := engine.NewPersistence(sc.DataDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithPersister(p))
	case config.PersistBadger:
		p, err := engine.NewBadgerPersistence(filepath.Join(sc.DataDir, "badger"))
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithPersister(p))
	}
	return engine.NewMemStore(opts...)
}
