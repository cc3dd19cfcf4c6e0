// Package server wires the configured identity provider, storage and blob
// backends into the HTTP API and runs it until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/villagekeeper/internal/logging"
	"github.com/dmitrijs2005/villagekeeper/internal/server/auth"
	"github.com/dmitrijs2005/villagekeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/villagekeeper/internal/server/config"
	"github.com/dmitrijs2005/villagekeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/villagekeeper/internal/server/identity"
	"github.com/dmitrijs2005/villagekeeper/internal/server/identity/keycloak"
	"github.com/dmitrijs2005/villagekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/villagekeeper/internal/server/revocation"
	"github.com/dmitrijs2005/villagekeeper/internal/server/services"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	closers []io.Closer
	server  *httpapi.HTTPServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogFormat, c.LogLevel, os.Stdout)
	app := &App{config: c, logger: logger}

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close(ctx)
		return nil, err
	}

	provider, err := app.newProvider(ctx, db, rm)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("identity provider: %w", err)
	}

	blobs, err := newBlobStore(ctx, c)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("blob store: %w", err)
	}

	vs := services.NewVillageService(db, rm, blobs, c.MaxUploadSize, logger)
	app.server = httpapi.NewHTTPServer(c.HTTPAddr, logger, provider, vs, httpapi.WithCORSOrigins(c.CORSAllowedOrigins))

	return app, nil
}

// newProvider builds the provider selected by AuthMode and, when a
// revocation backend is configured, wraps it with a denylist.
func (app *App) newProvider(ctx context.Context, db *sql.DB, rm repomanager.RepositoryManager) (identity.Provider, error) {
	c := app.config

	var provider identity.Provider
	switch c.AuthMode {
	case config.AuthModeKeycloak:
		p, err := keycloak.NewProvider(keycloak.Config{
			BaseURL:       c.KeycloakServerURL,
			Realm:         c.KeycloakRealm,
			ClientID:      c.KeycloakClientID,
			ClientSecret:  c.KeycloakClientSecret,
			AdminUser:     c.KeycloakAdminUser,
			AdminPassword: c.KeycloakAdminPassword,
			Timeout:       c.KeycloakTimeout,
		}, app.logger)
		if err != nil {
			return nil, err
		}
		provider = p

	default:
		secret := []byte(c.SecretKey)
		issuer, err := auth.NewHS256Issuer(secret, c.AccessTokenValidityDuration)
		if err != nil {
			return nil, err
		}
		verifier, err := auth.NewHS256Verifier(secret)
		if err != nil {
			return nil, err
		}
		p, err := identity.NewLocal(db, rm, auth.NewArgon2Hasher(), issuer, verifier, app.logger)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	denylist, err := newDenylist(ctx, c)
	if err != nil {
		return nil, err
	}
	if denylist == nil {
		return provider, nil
	}

	app.closers = append(app.closers, denylist)
	app.logger.Info(ctx, "token revocation enabled", "backend", c.RevocationBackend)
	return identity.NewRevoking(provider, denylist), nil
}

type closableDenylist interface {
	revocation.Denylist
	io.Closer
}

func newDenylist(ctx context.Context, c *config.Config) (closableDenylist, error) {
	switch c.RevocationBackend {
	case config.RevocationMemory:
		return revocation.NewMemory(c.RevocationWindow)
	case config.RevocationRedis:
		return revocation.NewRedisFromURL(ctx, c.RedisURL)
	default:
		return nil, nil
	}
}

func newBlobStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	if c.BlobBackend == config.BlobBackendS3 {
		return blobstore.NewS3(ctx, blobstore.S3Config{
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	}
	return blobstore.NewLocal(c.UploadDir)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Error(ctx, "close", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "auth_mode", app.config.AuthMode, "blob_backend", app.config.BlobBackend)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
}
