package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jun/cloudmover/internal/adapter"
	"github.com/jun/cloudmover/internal/adapter/googledrive"
	"github.com/jun/cloudmover/internal/adapter/memory"
	"github.com/jun/cloudmover/internal/auth"
	"github.com/jun/cloudmover/internal/config"
	"github.com/jun/cloudmover/internal/crypto"
	"github.com/jun/cloudmover/internal/handler"
	"github.com/jun/cloudmover/internal/secret"
	"github.com/jun/cloudmover/internal/session"
	"github.com/jun/cloudmover/internal/transfer"
)

// App holds the dependencies for the Lambda function.
type App struct {
	cfg *config.Config

	authHandler     *handler.AuthHandler
	sessionHandler  *handler.SessionHandler
	browseHandler   *handler.BrowseHandler
	transferHandler *handler.TransferHandler

	apiGatewaySecret string
	routes           map[route]handlerFunc
}

// NewApp loads configuration from the environment and wires the application.
// CONFIG_FILE optionally names a file read before the environment.
func NewApp(ctx context.Context) (*App, error) {
	v := config.New()
	cfg, err := config.Load(v, v.GetString("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// ConfigureLogging sets the global log level and, in dev mode, a console writer.
func ConfigureLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.DevMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// New wires the application from cfg. AWS configuration is only loaded when
// a component needs it, so dev mode with the memory backend runs offline.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	ConfigureLogging(cfg)

	awsCfg := sync.OnceValues(func() (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	})

	// Sealer for secret bundle fields at rest
	var sealer crypto.Encryptor
	if cfg.DevMode {
		sealer = crypto.NewMockEncryptor()
		log.Info().Msg("using mock encryptor (DEV_MODE)")
	} else {
		ac, err := awsCfg()
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		keyID := cfg.KMSKeyID
		if keyID == "" {
			keyID = "alias/cloudmover-token-key"
		}
		sealer = crypto.NewKMSService(kms.NewFromConfig(ac), keyID)
	}

	backend, err := newBackend(ctx, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	store := session.NewStore(backend, sealer, cfg.SessionTTL)

	// Secrets: SSM first, environment as fallback. Dev mode reads only the environment.
	var resolver secret.Resolver = secret.NewEnvResolver(nil)
	if !cfg.DevMode {
		ac, err := awsCfg()
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		resolver = secret.Chain{secret.NewSSMResolver(ssm.NewFromConfig(ac)), resolver}
	}

	clientSecret, err := resolver.Resolve(ctx, cfg.GoogleClientSecretParam)
	switch {
	case errors.Is(err, secret.ErrNotFound) && cfg.DevMode:
		log.Warn().Str("param", cfg.GoogleClientSecretParam).Msg("google client secret not set; only demo login will work")
	case err != nil:
		return nil, fmt.Errorf("resolve google client secret: %w", err)
	}

	apiGatewaySecret, err := resolver.Resolve(ctx, cfg.APIGatewaySecretParam)
	if err != nil && !errors.Is(err, secret.ErrNotFound) {
		return nil, fmt.Errorf("resolve api gateway secret: %w", err)
	}
	if apiGatewaySecret == "" && !cfg.DevMode {
		log.Warn().Str("param", cfg.APIGatewaySecretParam).Msg("api gateway secret not set; origin check disabled")
	}

	oauthConfig := auth.NewOAuthConfig(cfg.GoogleClientID, clientSecret, cfg.GoogleRedirectURL)
	verifier := auth.NewVerifier(auth.NewCertCache(nil, auth.GoogleCertsURL))
	authService := auth.NewService(oauthConfig, verifier, store)

	// Storage provider
	demo := memory.NewProvider(memory.DemoLimits, memory.SeedDemo)
	var provider adapter.Provider = demo
	if cfg.DevMode {
		log.Info().Msg("using seeded in-memory drives (DEV_MODE)")
	} else {
		provider = &HybridProvider{google: googledrive.NewProvider(), demo: demo}
	}

	a := &App{
		cfg:             cfg,
		authHandler:     handler.NewAuthHandler(authService, store, cfg.FrontendURL, cfg.DevMode).WithDemoLogin(cfg.DemoLogin),
		sessionHandler:  handler.NewSessionHandler(store),
		browseHandler:   handler.NewBrowseHandler(store, provider, handler.ScanLimits{MaxCalls: cfg.ScanMaxCalls, Timeout: cfg.ScanTimeout}),
		transferHandler: handler.NewTransferHandler(transfer.NewPipeline(store, provider)),

		apiGatewaySecret: apiGatewaySecret,
	}
	a.routes = a.routeTable()
	return a, nil
}

// Addr is the listen address for the standalone server.
func (app *App) Addr() string {
	return app.cfg.Addr
}

func newBackend(ctx context.Context, cfg *config.Config, awsCfg func() (aws.Config, error)) (session.Backend, error) {
	switch cfg.SessionBackend {
	case config.BackendRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		b := session.NewRedisBackend(client)

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := b.Ping(pingCtx); err != nil {
			// Requests report 503 until it comes up.
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis not reachable at startup")
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis session backend")
		return b, nil

	case config.BackendDynamoDB:
		ac, err := awsCfg()
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		log.Info().Str("table", cfg.SessionTable).Msg("using dynamodb session backend")
		return session.NewDynamoBackend(dynamodb.NewFromConfig(ac), cfg.SessionTable), nil

	case config.BackendMemory:
		log.Info().Msg("using in-memory session backend")
		return session.NewMemoryBackend(), nil
	}
	return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
}
