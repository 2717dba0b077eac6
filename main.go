package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"github.com/tanpawarit/quote-assistant/agent/agents/assistant"
	"github.com/tanpawarit/quote-assistant/agent/agents/proposer"
	"github.com/tanpawarit/quote-assistant/agent/catalog"
	"github.com/tanpawarit/quote-assistant/agent/intake"
	llmx "github.com/tanpawarit/quote-assistant/agent/llm"
	"github.com/tanpawarit/quote-assistant/agent/metrics"
	"github.com/tanpawarit/quote-assistant/agent/pricing"
	statex "github.com/tanpawarit/quote-assistant/agent/state"
	"github.com/tanpawarit/quote-assistant/agent/tool"
	configx "github.com/tanpawarit/quote-assistant/pkg/config"
	_ "github.com/tanpawarit/quote-assistant/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/quote-assistant/pkg/openrouter"
	qstashx "github.com/tanpawarit/quote-assistant/pkg/qstash"
)

type AppConfig struct {
	TaxRate         float64 `split_words:"true"`
	CatalogFile     string  `split_words:"true"`
	PricingFile     string  `split_words:"true"`
	MaxRounds       int     `split_words:"true" default:"2"`
	SessionID       string  `split_words:"true"`
	SendDestination string  `split_words:"true"`
}

func main() {
	ctx := context.Background()
	appCfg := configx.MustNew[AppConfig]("QUOTE")

	cat := mustCatalog(appCfg.CatalogFile)
	engine := mustEngine(appCfg.PricingFile)
	protocol, err := tool.New(cat, engine)
	if err != nil {
		log.Fatal().Err(err).Msg("catalog and pricing tables disagree")
	}

	taxRate := engine.TaxRate()
	if appCfg.TaxRate > 0 {
		taxRate = appCfg.TaxRate
	}

	llmCfg := configx.MustNew[llmx.Config]("LLM")
	if !llmCfg.SkipPreflight {
		orCfg := llmCfg.OpenRouter()
		if err := openrouterx.Preflight(ctx, openrouterx.NewClient(orCfg), orCfg.Model); err != nil {
			log.Fatal().Err(err).Msg("model preflight failed")
		}
	}
	prop, err := proposer.Build(ctx, *llmCfg, protocol, cat.Briefing())
	if err != nil {
		log.Fatal().Err(err).Msg("build proposer")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store := openStore()
	a, err := assistant.New(store, prop, protocol, assistant.Config{
		TaxRate:   taxRate,
		MaxRounds: appCfg.MaxRounds,
	}, assistant.WithMetrics(m))
	if err != nil {
		log.Fatal().Err(err).Msg("build assistant")
	}

	c := &console{
		assistant:   a,
		sessionID:   strings.TrimSpace(appCfg.SessionID),
		destination: strings.TrimSpace(appCfg.SendDestination),
		in:          os.Stdin,
		out:         os.Stdout,
	}
	if recent, ok := store.(statex.RecentLister); ok {
		c.recent = recent
	}
	if db := openDatabase(ctx); db != nil {
		defer db.Close()
		c.repo = statex.NewBunQuoteRepository(db)
	}
	if cfg, err := configx.New[qstashx.Config]("QSTASH"); err == nil {
		if client, err := qstashx.NewClient(*cfg); err == nil {
			c.qstash = client
		} else {
			log.Warn().Err(err).Msg("qstash disabled")
		}
	}

	if stop := startIntake(a, c.qstash, m, reg); stop != nil {
		defer stop()
	}

	if err := c.run(ctx); err != nil {
		log.Fatal().Err(err).Msg("console stopped")
	}
}

// startIntake serves the lead webhook when QUOTE_HTTP_ADDR is set. Leads are
// signature-checked whenever QStash signing keys are configured.
func startIntake(a *assistant.Assistant, client *qstashx.Client, m *metrics.Metrics, reg *prometheus.Registry) func() {
	cfg, err := configx.New[intake.Config]("QUOTE_HTTP")
	if err != nil || strings.TrimSpace(cfg.Addr) == "" {
		return nil
	}

	opts := []intake.Option{intake.WithMetrics(m, reg)}
	if client != nil {
		receiver, err := client.Receiver()
		if err != nil {
			log.Warn().Err(err).Msg("qstash signing keys missing; lead signatures are not checked")
		} else {
			opts = append(opts, intake.WithVerifier(receiver, cfg.PublicURL))
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := intake.NewRouter(a, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("build intake router")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("intake server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("intake server stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("intake shutdown")
		}
	}
}

func mustCatalog(path string) *catalog.Catalog {
	var (
		cat *catalog.Catalog
		err error
	)
	if strings.TrimSpace(path) != "" {
		cat, err = catalog.LoadFile(path)
	} else {
		cat, err = catalog.LoadDefault()
	}
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("load treatment catalog")
	}
	return cat
}

func mustEngine(path string) *pricing.Engine {
	var (
		cfg pricing.Config
		err error
	)
	if strings.TrimSpace(path) != "" {
		cfg, err = pricing.LoadConfigFile(path)
	} else {
		cfg, err = pricing.LoadDefaultConfig()
	}
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("load pricing templates")
	}
	engine, err := pricing.NewEngine(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build pricing engine")
	}
	return engine
}

// openStore uses Upstash when UPSTASH_* is configured and falls back to an
// in-process store otherwise.
func openStore() statex.Store {
	cfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH")
	if err != nil {
		log.Info().Msg("upstash not configured; sessions are kept in memory")
		return statex.NewMemoryStore()
	}
	store, err := statex.NewUpstashRedisStore(*cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build upstash store")
	}
	return store
}

func openDatabase(ctx context.Context) *bun.DB {
	cfg, err := configx.New[statex.DatabaseConfig]("DATABASE")
	if err != nil {
		log.Info().Msg("database not configured; /save and /load are disabled")
		return nil
	}
	db, err := statex.OpenDatabase(*cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if err := statex.NewBunQuoteRepository(db).CreateSchema(ctx); err != nil {
		log.Warn().Err(err).Msg("create quotes table")
	}
	return db
}
