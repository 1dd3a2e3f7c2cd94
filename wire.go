package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	orchestrator "github.com/tanpawarit/Chative-Trip-Planner/agent/agents/orchestrator"
	"github.com/tanpawarit/Chative-Trip-Planner/agent/agents/specialist"
	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	guardrailx "github.com/tanpawarit/Chative-Trip-Planner/agent/guardrail"
	llmx "github.com/tanpawarit/Chative-Trip-Planner/agent/llm"
	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
	toolx "github.com/tanpawarit/Chative-Trip-Planner/agent/tool"
	"github.com/tanpawarit/Chative-Trip-Planner/api"
	configx "github.com/tanpawarit/Chative-Trip-Planner/pkg/config"
	qstashx "github.com/tanpawarit/Chative-Trip-Planner/pkg/qstash"
)

const (
	storeMemory   = "memory"
	storeRedis    = "redis"
	storePostgres = "postgres"
)

type AppConfig struct {
	HTTPAddr          string        `envconfig:"HTTP_ADDR" default:":8080"`
	StoreDriver       string        `envconfig:"STORE_DRIVER" split_words:"true" default:"memory"`
	MemoryTTL         time.Duration `envconfig:"MEMORY_TTL" split_words:"true" default:"24h"`
	DefaultCurrency   string        `envconfig:"DEFAULT_CURRENCY" split_words:"true" default:"USD"`
	DateHorizonDays   int           `envconfig:"DATE_HORIZON_DAYS" split_words:"true" default:"365"`
	GuardrailFailOpen bool          `envconfig:"GUARDRAIL_FAIL_OPEN" split_words:"true" default:"true"`
	MaxHistory        int           `envconfig:"MAX_HISTORY" split_words:"true" default:"40"`
	MaxToolRounds     int           `envconfig:"MAX_TOOL_ROUNDS" split_words:"true" default:"3"`
	Timezone          string        `envconfig:"TIMEZONE" default:"UTC"`
	AuditDestination  string        `envconfig:"AUDIT_DESTINATION" split_words:"true"`
	AuditTimeout      time.Duration `envconfig:"AUDIT_TIMEOUT" split_words:"true" default:"2s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"10s"`
}

func provideAppConfig() (*AppConfig, error) {
	return configx.New[AppConfig]("APP")
}

func provideLLMConfig() (*llmx.Config, error) {
	return configx.New[llmx.Config]("LLM")
}

func provideStore(lc fx.Lifecycle, cfg *AppConfig) (statex.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreDriver)) {
	case storeMemory, "":
		return statex.NewMemoryStore(cfg.MemoryTTL), nil
	case storeRedis:
		redisCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, err
		}
		store, err := statex.NewUpstashRedisStore(*redisCfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	case storePostgres:
		pgCfg, err := configx.New[statex.PostgresConfig]("POSTGRES")
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), pgCfg.Timeout+5*time.Second)
		defer cancel()
		store, err := statex.NewPostgresStore(ctx, *pgCfg)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return store.Close() }})
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func provideRegistry(cfg *llmx.Config) (contractx.Registry, error) {
	return specialist.NewRegistry(context.Background(), *cfg)
}

func provideToolGateway(cfg *AppConfig) (contractx.ToolGateway, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	return toolx.NewGateway(
		toolx.WithHorizonDays(cfg.DateHorizonDays),
		toolx.WithClock(time.Now, loc),
	), nil
}

func provideAuditSinks(cfg *AppConfig) ([]guardrailx.AuditSink, error) {
	sinks := []guardrailx.AuditSink{guardrailx.LogSink{}}
	dest := strings.TrimSpace(cfg.AuditDestination)
	if dest == "" {
		return sinks, nil
	}

	qCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, err
	}
	client, err := qstashx.NewClient(*qCfg)
	if err != nil {
		return nil, err
	}
	publish, err := guardrailx.NewPublishSink(client, dest)
	if err != nil {
		return nil, err
	}
	return append(sinks, publish), nil
}

func provideOrchestrator(
	cfg *AppConfig,
	store statex.Store,
	registry contractx.Registry,
	tools contractx.ToolGateway,
	sinks []guardrailx.AuditSink,
) (*orchestrator.Orchestrator, error) {
	guardOpts := []guardrailx.PipelineOption{
		guardrailx.WithAuditSink(sinks...),
		guardrailx.WithAuditTimeout(cfg.AuditTimeout),
	}
	if !cfg.GuardrailFailOpen {
		guardOpts = append(guardOpts, guardrailx.WithFailClosed(""))
	}
	return orchestrator.New(store, registry, tools, orchestrator.Config{
		MaxHistory:      cfg.MaxHistory,
		MaxToolRounds:   cfg.MaxToolRounds,
		Timezone:        cfg.Timezone,
		DefaultCurrency: cfg.DefaultCurrency,
		HorizonDays:     cfg.DateHorizonDays,
	}, orchestrator.WithGuardrailOptions(guardOpts...))
}

func provideRouter(o *orchestrator.Orchestrator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	return api.NewRouter(api.NewSessionHandler(o))
}

func startServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *AppConfig, engine *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.StoreDriver).Msg("http_server_starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("http_server_failed")
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("http_server_stopping")
			stopCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(stopCtx)
		},
	})
}
