package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vizzzzk/nifty-options-bot/internal/config"
	"github.com/vizzzzk/nifty-options-bot/internal/costs"
	"github.com/vizzzzk/nifty-options-bot/internal/engine"
	"github.com/vizzzzk/nifty-options-bot/internal/ledger"
	"github.com/vizzzzk/nifty-options-bot/internal/logging"
	"github.com/vizzzzk/nifty-options-bot/internal/models"
	"github.com/vizzzzk/nifty-options-bot/internal/store"
	"github.com/vizzzzk/nifty-options-bot/internal/upstox"
)

// Version information
const (
	Version = "0.1.0"
)

// defaultUserID keys the portfolio row for the single-operator CLI.
const defaultUserID = "default"

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.PortfolioStore
	Router *engine.Router
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	client := upstox.NewClient(upstox.Config{
		APIKey:        cfg.Upstox.APIKey,
		APISecret:     cfg.Upstox.APISecret,
		RedirectURI:   cfg.Upstox.RedirectURI,
		BaseURL:       cfg.Upstox.BaseURL,
		AuthBaseURL:   cfg.Upstox.AuthBaseURL,
		InstrumentKey: cfg.Trading.InstrumentKey,
		Timeout:       cfg.Upstox.Timeout,
	}, logger)
	market := upstox.NewCircuitBreakerClient(client, upstox.DefaultBreakerSettings())

	dbPath := cfg.Store.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(config.DefaultConfigDir(), "bot.db")
	}
	dataStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, portfolio will not persist")
	} else {
		app.Store = dataStore
		logger.Debug().Str("path", dbPath).Msg("SQLite store initialized")
	}

	schedule := costs.DefaultSchedule(cfg.Trading.LotSize)
	book := ledger.New(market, schedule, logger)
	app.Router = engine.NewRouter(engine.Config{
		Market:       market,
		Auth:         client,
		Ledger:       book,
		Schedule:     schedule,
		InitialFunds: cfg.Trading.InitialFunds,
		Logger:       logger,
	})

	rootCmd := &cobra.Command{
		Use:   "bot",
		Short: "NIFTY options analysis and paper-trading bot",
		Long: `A NIFTY index-options analysis and paper-trading CLI.

It reads live option chains from Upstox, scores strikes by delta band,
implied volatility and liquidity, and keeps a simulated ledger with
realistic Indian brokerage costs.

Use 'bot chat' for the interactive session, or the one-shot commands
(analyze, paper, portfolio, close) for scripting.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newChatCmd(app))
	rootCmd.AddCommand(newExpiriesCmd(app))
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newPaperCmd(app))
	rootCmd.AddCommand(newPortfolioCmd(app))
	rootCmd.AddCommand(newCloseCmd(app))
	rootCmd.AddCommand(newResetCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newLoginCmd(app))
	rootCmd.AddCommand(newLogoutCmd(app))

	return rootCmd
}

// dispatch runs one chat-grammar command through the router, persisting the
// resulting portfolio and any freshly minted access token.
func (app *App) dispatch(ctx context.Context, input string) (engine.Response, error) {
	pf := models.NewPortfolio(app.Config.Trading.InitialFunds)
	if app.Store != nil {
		stored, ok, err := app.Store.Load(ctx, defaultUserID)
		if err != nil {
			return nil, fmt.Errorf("load portfolio: %w", err)
		}
		if ok {
			pf = stored
		}
	}

	resp := app.Router.Handle(ctx, input, loadSession(), pf)

	if app.Store != nil {
		// The router call stays outside the transaction; only applying its
		// result is serialized against other writers of the same row.
		_, err := app.Store.Update(ctx, defaultUserID, func(models.Portfolio) (models.Portfolio, error) {
			return resp.ResultPortfolio(), nil
		})
		if err != nil {
			app.Logger.Error().Err(err).Msg("Failed to persist portfolio")
		}
		if resp.Kind() == engine.KindClosePosition {
			history := resp.ResultPortfolio().TradeHistory
			if len(history) > 0 {
				if err := app.Store.LogClosedTrade(ctx, defaultUserID, history[len(history)-1]); err != nil {
					app.Logger.Error().Err(err).Msg("Failed to log closed trade")
				}
			}
		}
	}
	if token := resp.NewAccessToken(); token != "" {
		if err := saveSession(token); err != nil {
			app.Logger.Error().Err(err).Msg("Failed to persist session")
		}
	}
	return resp, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("nifty-options-bot v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			cfg := app.Config
			output.Bold("Upstox")
			output.Printf("  Base URL:       %s\n", cfg.Upstox.BaseURL)
			output.Printf("  Redirect URI:   %s\n", cfg.Upstox.RedirectURI)
			output.Printf("  API key set:    %v\n", cfg.Upstox.APIKey != "")
			output.Println()
			output.Bold("Trading")
			output.Printf("  Instrument:     %s\n", cfg.Trading.InstrumentKey)
			output.Printf("  Lot size:       %d\n", cfg.Trading.LotSize)
			output.Printf("  Initial funds:  %.0f\n", cfg.Trading.InitialFunds)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}
