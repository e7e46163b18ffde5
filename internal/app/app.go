package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"index-returns/internal/comparison"
	"index-returns/internal/config"
	"index-returns/internal/indexdata"
	"index-returns/internal/notify"
	"index-returns/internal/period"
	"index-returns/internal/resolver"
	"index-returns/internal/service"
	"index-returns/internal/storage"
	"index-returns/internal/synthetic"
	"index-returns/internal/table"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

// stack is the engine plus what it was built from.
type stack struct {
	source table.Source
	store  *storage.Store
	repo   *indexdata.Repository
	engine *service.Engine
	close  func()
}

func (a *App) openSource(ctx context.Context) (table.Source, *storage.Store, func(), error) {
	tables := a.Config.Tables
	switch tables.Source {
	case config.SourceCSV:
		if tables.ReturnsCSV == "" && tables.LevelsCSV == "" {
			return nil, nil, nil, errors.New("tables.returns_csv or tables.levels_csv is required for the csv source")
		}
		mem := table.NewMemory()
		if tables.ReturnsCSV != "" {
			if err := mem.LoadCSV(tables.Returns, tables.ReturnsCSV); err != nil {
				return nil, nil, nil, err
			}
		}
		if tables.LevelsCSV != "" {
			if err := mem.LoadCSV(tables.Levels, tables.LevelsCSV); err != nil {
				return nil, nil, nil, err
			}
		}
		return mem, nil, func() {}, nil
	default:
		if a.Config.Database.DSN == "" {
			return nil, nil, nil, errors.New("database.dsn not configured")
		}
		store, err := storage.Open(ctx, a.Config.Database, a.Config.App.Name)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store, store.Close, nil
	}
}

func (a *App) newNotifier() notify.Notifier {
	alerting := a.Config.Alerting
	if !alerting.Enabled {
		return nil
	}
	var out notify.Multi
	for _, channel := range alerting.Channels {
		switch strings.ToLower(strings.TrimSpace(channel)) {
		case "log":
			out = append(out, notify.NewLogNotifier(a.Logger))
		case "telegram":
			if !alerting.Telegram.Enabled {
				a.Logger.Warn().Msg("telegram channel listed but alerting.telegram.enabled is false")
				continue
			}
			tg := alerting.Telegram
			out = append(out, notify.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBase, 10*time.Second, a.Logger))
		default:
			a.Logger.Warn().Str("channel", channel).Msg("unknown alerting channel ignored")
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (a *App) seed() uint64 {
	if a.Config.Engine.SyntheticSeed != 0 {
		return a.Config.Engine.SyntheticSeed
	}
	return uint64(time.Now().UnixNano())
}

// build wires source, repository, builder and engine without loading data.
func (a *App) build(ctx context.Context) (*stack, error) {
	source, store, closer, err := a.openSource(ctx)
	if err != nil {
		return nil, err
	}

	cfg := a.Config
	repo := indexdata.New(source, indexdata.Options{
		ReturnsTable:  cfg.Tables.Returns,
		ReturnsKey:    cfg.Tables.ReturnsKey,
		LevelsTable:   cfg.Tables.Levels,
		LevelsKey:     cfg.Tables.LevelsKey,
		HeaderPattern: cfg.Tables.HeaderPattern,
		FanOutLimit:   cfg.Engine.FanOutLimit,
		RiskFreeRate:  cfg.Engine.RiskFreeRate,
		StrictPercent: cfg.Engine.StrictPercent,
	}, a.Logger)

	builder := comparison.NewBuilder(comparison.Options{
		Generator:     synthetic.NewTrendGenerator(a.seed()),
		StrictPercent: cfg.Engine.StrictPercent,
	}, a.Logger)

	engine := service.New(repo, builder, a.newNotifier(), service.Options{
		Resolver: resolver.Options{
			MinPoints:      cfg.Engine.MinPoints,
			FallbackWindow: cfg.Engine.FallbackWindow,
		},
		Alerts:   cfg.Alerting.Enabled,
		Cooldown: cfg.Alerting.Cooldown,
		Channels: cfg.Alerting.Channels,
		Table:    cfg.Tables.Returns,
	}, a.Logger)

	return &stack{source: source, store: store, repo: repo, engine: engine, close: closer}, nil
}

// load builds the stack and performs the initial repository load.
func (a *App) load(ctx context.Context) (*stack, error) {
	st, err := a.build(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.repo.Init(ctx); err != nil {
		st.close()
		return nil, fmt.Errorf("load index data: %w", err)
	}
	return st, nil
}

// QueryOptions select indices and a date range for compare, stats and export.
type QueryOptions struct {
	Indices   []string
	Benchmark string
	From      *time.Time
	To        *time.Time
	JSON      bool
}

func (o QueryOptions) request() service.Request {
	return service.Request{Indices: o.Indices, Benchmark: o.Benchmark, From: o.From, To: o.To}
}

// StatsOptions configure the stats command.
type StatsOptions struct {
	QueryOptions
	Period period.Period
}

// ExportOptions hold parameters for exporting one comparison period.
type ExportOptions struct {
	QueryOptions
	Period  period.Period
	Dir     string
	PNGPath string
	CSVPath string
}

// ProcessOptions configure the returns-table loader.
type ProcessOptions struct {
	Periods []int
	CSVPath string
	DryRun  bool
}
