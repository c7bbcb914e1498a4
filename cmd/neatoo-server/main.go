// Command neatoo-server runs the remote-factory dispatch endpoint for the
// demo Person type: wire registry, delegate registry, authorization chain,
// event scheduler, and the pgx-backed store, then serve over HTTP with
// graceful shutdown.
//
// Grounded on apps/iam-service/cmd/api/main.go's boot sequence (logger ->
// tracer -> Vault secrets -> database pool -> HTTP server goroutine ->
// signal-driven graceful shutdown), generalized from iam-service's fixed
// handler set to a delegate registry built from store.PersonRepository.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arc-self/neatoo/authz"
	"github.com/arc-self/neatoo/config"
	"github.com/arc-self/neatoo/delegate"
	"github.com/arc-self/neatoo/event"
	"github.com/arc-self/neatoo/factory"
	"github.com/arc-self/neatoo/neatooerr"
	"github.com/arc-self/neatoo/neatoohttp"
	"github.com/arc-self/neatoo/registry"
	"github.com/arc-self/neatoo/store"
	"github.com/arc-self/neatoo/telemetry"
	"github.com/arc-self/neatoo/wire"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), "neatoo-server", endpoint)
		if err != nil {
			logger.Error("failed to init OTel tracer", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
			logger.Info("OTel tracer initialized", zap.String("endpoint", endpoint))
		}
	}

	vaultAddr := envOr("VAULT_ADDR", "http://localhost:8200")
	vaultToken := envOr("VAULT_TOKEN", "root")
	secretPath := envOr("VAULT_SECRET_PATH", "secret/data/arc/neatoo-server")

	secrets, err := config.LoadVaultSecrets(vaultAddr, vaultToken, secretPath)
	if err != nil {
		logger.Warn("failed to load secrets from vault, falling back to env vars", zap.Error(err))
		secrets = nil
	}

	cfg := config.LoadServerConfig(secrets)

	var db *sql.DB
	if cfg.PostgresURL != "" {
		opened, err := store.OpenPool(cfg.PostgresURL)
		if err != nil {
			logger.Fatal("failed to open database pool", zap.Error(err))
		}
		defer opened.Close()
		db = opened
		logger.Info("connected to database", zap.String("url", cfg.PostgresURL))
	} else {
		logger.Warn("NEATOO_PG_URL not set, Person persistence delegates will be unavailable")
	}

	reg := registry.New()
	if err := store.RegisterPerson(reg, "acme.Person"); err != nil {
		logger.Fatal("failed to register Person type", zap.Error(err))
	}

	chain := authz.NewChain()
	if cfg.JWKSURL != "" {
		jwks, err := keyfunc.NewDefault([]string{cfg.JWKSURL})
		if err != nil {
			logger.Error("failed to load JWKS, Person authorization will deny all requests", zap.Error(err))
			chain.AddClassPredicate("Person", authz.CapabilityAll, authz.PredicateFunc(func(context.Context, authz.Request) (authz.Decision, error) {
				return authz.Deny("authorization unavailable"), nil
			}))
		} else {
			jwtPredicate := authz.NewJWTPredicate(jwks, logger)
			redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			chain.AddClassPredicate("Person", authz.CapabilityAll, authz.NewCachingPredicate(jwtPredicate, redisClient, 30*time.Second, logger))
		}
	}

	var schedulerOpts []event.Option
	if nc, err := nats.Connect(cfg.NATSURL, nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1)); err != nil {
		logger.Warn("nats connection failed, event completions will not be published", zap.Error(err))
	} else {
		logger.Info("connected to NATS", zap.String("url", cfg.NATSURL))
		schedulerOpts = append(schedulerOpts, event.WithPublisher(nc, "neatoo.events.completed"))
	}

	scheduler := event.New(logger, schedulerOpts...)
	defer scheduler.Drain(10 * time.Second)

	core := factory.New(chain, logger)

	delegates := delegate.New()
	registerPersonDelegates(delegates, core, db, scheduler, logger)

	done := make(chan struct{})
	srv := neatoohttp.New(reg, delegates, core, wire.FormatOrdinal, logger, done)

	go func() {
		logger.Info("neatoo-server HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.Echo().Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failure", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("initiating graceful shutdown")
	close(done)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Echo().Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown error", zap.Error(err))
	}

	logger.Info("neatoo-server shut down cleanly")
}

// registerPersonDelegates wires the demo Person factory operations to
// store.PersonRepository, resolving [Service] parameters via the closure
// itself (see neatoohttp/dispatch.go's doc comment on step 6-7). Insert,
// Update, and Delete are registered as write adapters; Person.Save#1 routes
// to one of the three via delegate.Registry.BuildSaveHandler and
// factory.Core.Save.
func registerPersonDelegates(delegates *delegate.Registry, core *factory.Core, db *sql.DB, scheduler *event.Scheduler, logger *zap.Logger) {
	personType := reflect.TypeOf(&store.Person{})
	idType := reflect.TypeOf(int64(0))

	delegates.MustRegister(delegate.BuildName("Person", delegate.OpFetch, 1), delegate.Registration{
		Signature: delegate.Signature{ParamTypes: []reflect.Type{idType}, ResultType: personType},
		Handler: func(ctx context.Context, params []any) (any, error) {
			if db == nil {
				return nil, errUnavailable("FetchByID")
			}
			repo := store.NewPersonRepository(db, logger)
			return repo.FetchByID(ctx, params[0].(int64))
		},
	})

	delegates.MustRegister(delegate.BuildName("Person", delegate.OpInsert, 1), delegate.Registration{
		Signature: delegate.Signature{ParamTypes: []reflect.Type{personType}, ResultType: personType},
		Hooks: &factory.Hooks{
			OnComplete: func(ctx context.Context, result any) error {
				scheduler.Enqueue(ctx, func(ctx context.Context) {
					if p, ok := result.(*store.Person); ok {
						logger.Info("person inserted", zap.Int64("id", p.ID), zap.String("name", p.Name))
					}
				})
				return nil
			},
		},
		Handler: func(ctx context.Context, params []any) (any, error) {
			if db == nil {
				return nil, errUnavailable("Insert")
			}
			p := params[0].(*store.Person)
			repo := store.NewPersonRepository(db, logger)
			if err := repo.Insert(ctx, p); err != nil {
				return nil, err
			}
			return p, nil
		},
	})

	delegates.MustRegister(delegate.BuildName("Person", delegate.OpUpdate, 1), delegate.Registration{
		Signature: delegate.Signature{ParamTypes: []reflect.Type{personType}, ResultType: personType},
		Handler: func(ctx context.Context, params []any) (any, error) {
			if db == nil {
				return nil, errUnavailable("Update")
			}
			p := params[0].(*store.Person)
			repo := store.NewPersonRepository(db, logger)
			return p, repo.Update(ctx, p)
		},
	})

	delegates.MustRegister(delegate.BuildName("Person", delegate.OpDelete, 1), delegate.Registration{
		Signature: delegate.Signature{ParamTypes: []reflect.Type{personType}, ResultType: personType},
		Handler: func(ctx context.Context, params []any) (any, error) {
			if db == nil {
				return nil, errUnavailable("Delete")
			}
			p := params[0].(*store.Person)
			repo := store.NewPersonRepository(db, logger)
			return p, repo.Delete(ctx, p)
		},
	})

	// Person.Save#1 routes to whichever of the three adapters above Route
	// picks, per the Save routing table.
	delegates.MustRegister(delegate.BuildName("Person", delegate.OpSave, 1), delegate.Registration{
		Signature: delegate.Signature{ParamTypes: []reflect.Type{personType}, ResultType: personType},
		Handler:   delegates.BuildSaveHandler(core, "Person", 1),
	})
}

func errUnavailable(op string) error {
	return neatooerr.Newf(neatooerr.KindMissingService, "person repository unavailable for %s: NEATOO_PG_URL not configured", op)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
