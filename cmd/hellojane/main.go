// hellojane es el authorization server OAuth2.
//
//	hellojane serve --config config.yaml
//	hellojane seed  --username admin --password ... --role admin
package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/hellojane/internal/app"
	"github.com/dropDatabas3/hellojane/internal/cache"
	"github.com/dropDatabas3/hellojane/internal/codes"
	"github.com/dropDatabas3/hellojane/internal/config"
	"github.com/dropDatabas3/hellojane/internal/domain/repository"
	httpx "github.com/dropDatabas3/hellojane/internal/http"
	"github.com/dropDatabas3/hellojane/internal/jwt"
	"github.com/dropDatabas3/hellojane/internal/observability/logger"
	"github.com/dropDatabas3/hellojane/internal/observability/metrics"
	"github.com/dropDatabas3/hellojane/internal/rate"
	"github.com/dropDatabas3/hellojane/internal/scopes"
	"github.com/dropDatabas3/hellojane/internal/security/password"
	"github.com/dropDatabas3/hellojane/internal/store/memory"
	"github.com/dropDatabas3/hellojane/internal/store/pg"
)

var configPath string

func main() {
	// .env es opcional; pisa nada si no existe.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "hellojane",
		Short:         "OAuth2 authorization server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("HELLOJANE_CONFIG"), "ruta al config.yaml")

	root.AddCommand(newServeCmd(), newSeedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// runtime agrupa lo que arma buildRuntime y lo que hay que cerrar.
type runtime struct {
	container *app.Container
	cfg       *config.Config
	pool      *pgxpool.Pool
	close     func()
}

func buildRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "hellojane"})
	log := logger.Named("boot")

	secret := cfg.JWT.Secret
	if secret == "" {
		// Solo posible en dev (Load ya lo validó).
		secret = "dev-secret-change-me"
		log.Warn("jwt.secret vacío, usando secreto de desarrollo")
	}

	var closers []func()

	// Cache + limiter
	var cacheClient cache.Client
	limiter := rate.Limiter(rate.Noop{})
	switch cfg.Cache.Kind {
	case "redis":
		rc := rdb.NewClient(&rdb.Options{Addr: cfg.Cache.Redis.Addr, DB: cfg.Cache.Redis.DB})
		if err := rc.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis: ping: %w", err)
		}
		cacheClient = cache.NewRedisFrom(rc)
		if cfg.Rate.Enabled {
			limiter = rate.NewRedisLimiter(rc)
		}
		closers = append(closers, func() { _ = rc.Close() })
	case "memory":
		cacheClient = cache.NewMemory(config.MustDuration(cfg.Cache.Memory.DefaultTTL, 2*time.Minute))
	default:
		return nil, fmt.Errorf("cache.kind inválido: %q", cfg.Cache.Kind)
	}

	// Storage
	c := &app.Container{
		Cache:   cacheClient,
		Codes:   codes.New(cacheClient),
		Codec:   jwt.NewCodec([]byte(secret)),
		Scopes:  scopes.New(scopes.DefaultTable()),
		Limiter: limiter,
		Policy: app.Policy{
			RequireClientID:   cfg.Auth.RequireClientID,
			MaxSessions:       cfg.Auth.MaxSessions,
			AccessTTL:         config.MustDuration(cfg.JWT.AccessTTL, 15*time.Minute),
			ClientTTL:         config.MustDuration(cfg.JWT.ClientTTL, 24*time.Hour),
			RefreshTTL:        config.MustDuration(cfg.JWT.RefreshTTL, 720*time.Hour),
			SessionCookieName: cfg.Auth.Session.CookieName,
			SessionCookieTTL:  config.MustDuration(cfg.Auth.Session.TTL, 12*time.Hour),
			SecureCookies:     cfg.Auth.Session.Secure,
		},
	}

	var pool *pgxpool.Pool
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err = pg.Connect(ctx, cfg.Storage.DSN, cfg.Storage.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		c.Accounts = pg.NewAccountRepo(pool)
		c.Clients = pg.NewClientRepo(pool)
		c.Sessions = pg.NewSessionRepo(pool)
		closers = append(closers, pool.Close)
	case "memory":
		st := memory.New()
		c.Accounts = st.Accounts()
		c.Clients = st.Clients()
		c.Sessions = st.Sessions()
		log.Warn("storage en memoria: todo se pierde al reiniciar")
	default:
		return nil, fmt.Errorf("storage.driver inválido: %q", cfg.Storage.Driver)
	}

	return &runtime{
		container: c,
		cfg:       cfg,
		pool:      pool,
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()
			defer func() { _ = logger.Sync() }()
			log := logger.Named("serve")

			metricsHandler, err := metrics.Register(nil)
			if err != nil {
				return err
			}
			if rt.pool != nil {
				if err := metrics.RegisterPool(nil, func() *pgxpool.Pool { return rt.pool }); err != nil {
					return err
				}
			}

			router := httpx.NewRouter(rt.container, httpx.RateConfig{
				Enabled:     rt.cfg.Rate.Enabled,
				LoginLimit:  rt.cfg.Rate.Login.Limit,
				LoginWindow: config.MustDuration(rt.cfg.Rate.Login.Window, time.Minute),
				TokenLimit:  rt.cfg.Rate.Token.Limit,
				TokenWindow: config.MustDuration(rt.cfg.Rate.Token.Window, time.Minute),
			})
			srv := httpx.NewServer(rt.cfg.Server.Addr, router)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("escuchando", zap.String("addr", rt.cfg.Server.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
					return err
				}
				return nil
			})

			var metricsSrv *stdhttp.Server
			if addr := rt.cfg.Server.MetricsAddr; addr != "" {
				mux := stdhttp.NewServeMux()
				mux.Handle("/metrics", metricsHandler)
				metricsSrv = httpx.NewServer(addr, mux)
				g.Go(func() error {
					log.Info("métricas", zap.String("addr", addr))
					if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
						return err
					}
					return nil
				})
			}

			// Janitor: las sesiones vencidas igual fallan en el refresh,
			// esto solo evita que la tabla crezca sin tope.
			g.Go(func() error {
				t := time.NewTicker(time.Hour)
				defer t.Stop()
				for {
					select {
					case <-gctx.Done():
						return nil
					case <-t.C:
						n, err := rt.container.Sessions.DeleteExpired(gctx)
						if err != nil {
							log.Warn("janitor: purga de sesiones falló", zap.Error(err))
						} else if n > 0 {
							log.Info("janitor: sesiones vencidas purgadas", zap.Int("count", n))
						}
					}
				}
			})

			g.Go(func() error {
				<-gctx.Done()
				log.Info("apagando")
				if metricsSrv != nil {
					_ = httpx.Shutdown(metricsSrv, 5*time.Second)
				}
				return httpx.Shutdown(srv, 10*time.Second)
			})

			return g.Wait()
		},
	}
}

func newSeedCmd() *cobra.Command {
	var (
		username, email, pass, role        string
		clientID, clientSecret, clientName string
		redirectURIs, clientScopes         []string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Crea una cuenta y/o una application inicial",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()
			log := logger.Named("seed")

			if username != "" {
				if pass == "" {
					return errors.New("seed: --password es obligatorio con --username")
				}
				hash, err := password.Hash(password.Default, pass)
				if err != nil {
					return err
				}
				acc, err := rt.container.Accounts.Create(ctx, repository.CreateAccountInput{
					Email:        email,
					Username:     username,
					PasswordHash: hash,
					Role:         role,
				})
				if err != nil {
					if errors.Is(err, repository.ErrConflict) {
						log.Info("cuenta ya existente, se omite", zap.String("username", username))
					} else {
						return err
					}
				} else {
					log.Info("cuenta creada", zap.String("id", acc.ID.String()), zap.String("role", acc.Role))
				}
			}

			if clientID != "" {
				if clientSecret == "" {
					return errors.New("seed: --client-secret es obligatorio con --client-id")
				}
				if clientName == "" {
					clientName = clientID
				}
				cl, err := rt.container.Clients.Create(ctx, repository.CreateClientInput{
					ClientID:     clientID,
					ClientSecret: clientSecret,
					Name:         clientName,
					RedirectURIs: redirectURIs,
					Scopes:       clientScopes,
				})
				if err != nil {
					if errors.Is(err, repository.ErrConflict) {
						log.Info("application ya existente, se omite", zap.String("client_id", clientID))
					} else {
						return err
					}
				} else {
					log.Info("application creada", zap.String("client_id", cl.ClientID))
				}
			}

			if username == "" && clientID == "" {
				return errors.New("seed: nada para crear (usar --username y/o --client-id)")
			}
			if rt.cfg.Storage.Driver == "memory" {
				log.Warn("seed sobre storage en memoria: no persiste")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username de la cuenta")
	cmd.Flags().StringVar(&email, "email", "", "email de la cuenta")
	cmd.Flags().StringVar(&pass, "password", "", "password de la cuenta")
	cmd.Flags().StringVar(&role, "role", repository.RoleUser, "rol: "+strings.Join([]string{repository.RoleUser, repository.RoleStaff, repository.RoleDeveloper, repository.RoleAdmin}, "|"))
	cmd.Flags().StringVar(&clientID, "client-id", "", "client_id de la application")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "client_secret de la application")
	cmd.Flags().StringVar(&clientName, "client-name", "", "nombre visible de la application")
	cmd.Flags().StringSliceVar(&redirectURIs, "redirect-uri", nil, "redirect URI permitido (repetible)")
	cmd.Flags().StringSliceVar(&clientScopes, "client-scope", nil, "scope otorgado al client (repetible)")
	return cmd
}
