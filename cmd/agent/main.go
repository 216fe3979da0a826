package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/hanguk-agent/internal/agent"
	"github.com/sawpanic/hanguk-agent/internal/calendar"
	"github.com/sawpanic/hanguk-agent/internal/catalog"
	"github.com/sawpanic/hanguk-agent/internal/config"
	"github.com/sawpanic/hanguk-agent/internal/disambig"
	"github.com/sawpanic/hanguk-agent/internal/httpapi"
	"github.com/sawpanic/hanguk-agent/internal/llm"
	"github.com/sawpanic/hanguk-agent/internal/marketdata"
	"github.com/sawpanic/hanguk-agent/internal/metrics"
	"github.com/sawpanic/hanguk-agent/internal/session"
)

const (
	appName = "hanguk-agent"
	version = "v0.1.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	var configPath string

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Korean equity market Q&A agent",
		Version: version,
		Long: `hanguk-agent answers natural-language questions about the KOSPI/KOSDAQ
market: price and volume lookups, market-wide ranking, golden/dead-cross
and pattern screening, and follow-up slot-filling across turns.`,
		Run: runDefaultEntry,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (defaults built in if omitted)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP adapter",
		Long:  "Starts the GET /agent HTTP server, wiring the catalog, calendar, market data provider, LLM bridge, disambiguator, and session store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	reloadCmd := &cobra.Command{
		Use:   "reload-catalog",
		Short: "Validate the catalog CSVs without starting the server",
		Long:  "Loads the KOSPI/KOSDAQ/alias CSVs configured in config.yaml and reports the resulting universe sizes, useful as a pre-deploy smoke check.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReloadCatalog(configPath)
		},
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reloadCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// runDefaultEntry guides an interactive terminal toward --help rather
// than silently doing nothing when no subcommand is given.
func runDefaultEntry(cmd *cobra.Command, args []string) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "hanguk-agent requires a subcommand. Try:")
		fmt.Fprintln(os.Stderr, "   hanguk-agent serve --config config.yaml")
		fmt.Fprintln(os.Stderr, "   hanguk-agent reload-catalog --config config.yaml")
		fmt.Fprintln(os.Stderr, "   hanguk-agent --help")
		return
	}
	_ = cmd.Help()
}

func runReloadCatalog(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cat, err := catalog.LoadCSVs(cfg.Catalog.KOSPICSV, cfg.Catalog.KOSDAQCSV, cfg.Catalog.AliasCSV)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	kospi := cat.Universe(marketPtr(catalog.KOSPI))
	kosdaq := cat.Universe(marketPtr(catalog.KOSDAQ))
	fmt.Printf("catalog ok: KOSPI=%d KOSDAQ=%d tickers\n", len(kospi), len(kosdaq))
	return nil
}

func marketPtr(m catalog.Market) *catalog.Market { return &m }

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cat, err := catalog.LoadCSVs(cfg.Catalog.KOSPICSV, cfg.Catalog.KOSDAQCSV, cfg.Catalog.AliasCSV)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	log.Info().Int("kospi", len(cat.Universe(marketPtr(catalog.KOSPI)))).
		Int("kosdaq", len(cat.Universe(marketPtr(catalog.KOSDAQ)))).
		Msg("catalog loaded")

	cal := calendar.NewKRX(nil)

	bridge := llm.NewHTTPBridge(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey(),
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		BackoffBase: cfg.LLM.BackoffBase,
		RatePerSec:  cfg.LLM.RatePerSec,
		PromptDir:   cfg.LLM.PromptAssets,
	})

	resolver := disambig.NewResolver(cat, bridge, disambig.Config{
		TopKFuzzy:        cfg.Disambig.TopKFuzzy,
		TopKEmbed:        cfg.Disambig.TopKEmbed,
		ConfidenceThresh: cfg.Disambig.ConfidenceThresh,
	})

	store, err := newSessionStore(cfg.Session)
	if err != nil {
		return fmt.Errorf("build session store: %w", err)
	}

	provider := marketdata.NewHTTPProvider(os.Getenv("OHLCV_BASE_URL"), 10)

	reg := metrics.NewRegistry()

	a := &agent.Agent{
		Catalog:  cat,
		Calendar: cal,
		Provider: provider,
		Bridge:   bridge,
		Resolver: resolver,
		Sessions: store,
		Metrics:  reg,
		Now:      time.Now,
	}

	srv := httpapi.NewServer(a, reg, httpapi.ServerConfig{
		Host:            cfg.HTTP.Host,
		Port:            cfg.HTTP.Port,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		RequestDeadline: cfg.LLM.Timeout,
	})

	return srv.Start()
}

func newSessionStore(cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Backend {
	case "redis":
		return session.NewRedisStore(cfg.RedisAddr, cfg.TTL), nil
	case "memory", "":
		return session.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
