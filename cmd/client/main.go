package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"apod-explorer/internal/calendar"
	"apod-explorer/internal/client/api"
	"apod-explorer/internal/client/cli"
	"apod-explorer/internal/client/favorites"
	"apod-explorer/internal/client/gallery"
	"apod-explorer/internal/client/localstore"
	"apod-explorer/internal/client/session"
	"apod-explorer/internal/config"
	"apod-explorer/internal/repository/sqlite"
	"apod-explorer/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stderr)

	cfg, err := config.LoadClient()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	toasts := cli.NewToaster(os.Stdout)

	store, closeStore := openStore(ctx, cfg.Store.Path, logger, toasts)
	defer closeStore()

	apiClient := api.New(api.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  logger.WithField("component", "api"),
	})

	router := cli.NewRouter(session.PathHome)
	sess := session.NewClient(apiClient, store, router, toasts, logger.WithField("component", "session"))

	nav := calendar.NewNavigator(calendar.LocalClock{Location: time.Local})
	favs, err := favorites.Load(ctx, store, logger.WithField("component", "favorites"))
	if err != nil {
		toasts.Warn("Could not load saved favorites.")
	}
	viewer := gallery.New(apiClient, nav, favs, toasts, logger.WithField("component", "gallery"))

	var archiver cli.Archiver
	if cfg.Archive.Bucket != "" {
		a, err := buildArchiver(ctx, cfg, logger)
		if err != nil {
			logger.Warnf("archive disabled: %v", err)
		} else {
			archiver = a
		}
	}

	app := cli.NewApp(cli.Config{
		Session:   sess,
		Gallery:   viewer,
		Navigator: nav,
		Favorites: favs,
		Router:    router,
		Toaster:   toasts,
		Archiver:  archiver,
		In:        os.Stdin,
		Out:       os.Stdout,
		Logger:    logger,
	})
	if err := app.Run(ctx); err != nil {
		logger.Errorf("client: %v", err)
	}
}

// openStore falls back to process memory when the local file cannot be used.
func openStore(ctx context.Context, path string, logger *logrus.Logger, toasts *cli.Toaster) (localstore.Store, func()) {
	db, err := sqlite.Open(path)
	if err != nil {
		logger.Warnf("open local store: %v", err)
		toasts.Warn("Local storage unavailable; nothing will be remembered after exit.")
		return localstore.NewMemoryStore(), func() {}
	}

	store := localstore.NewSQLiteStore(db)
	if err := store.Init(ctx); err != nil {
		_ = db.Close()
		logger.Warnf("init local store: %v", err)
		toasts.Warn("Local storage unavailable; nothing will be remembered after exit.")
		return localstore.NewMemoryStore(), func() {}
	}
	return store, func() { _ = db.Close() }
}

func buildArchiver(ctx context.Context, cfg config.ClientConfig, logger *logrus.Logger) (*storage.Archiver, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Archive.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Archive.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Archive.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("archiving to s3 bucket %s (region %s)", cfg.Archive.Bucket, cfg.Archive.Region)

	return storage.NewArchiver(storage.NewS3Service(client), storage.ArchiveConfig{
		Bucket:     cfg.Archive.Bucket,
		KeyPrefix:  cfg.Archive.KeyPrefix,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
		Logger:     logger.WithField("component", "archive"),
	}), nil
}
