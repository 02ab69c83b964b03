package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vizzzzk/nifty-options-bot/pkg/utils"
)

func newChatCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive analysis and paper-trading session",
		Long: `Starts a REPL speaking the bot's chat grammar:

  start                                  list upcoming expiries
  exp:2025-01-30                         analyze one expiry
  /paper CE 22500 SELL 1 150.00          open a simulated position
  /portfolio                             list positions with live marks
  /close 1                               close a position
  /reset                                 wipe the ledger
  auth                                   print the authorization URL

Paste an Upstox authorization code (or the full redirect URL) to log in.
Type 'exit' to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			output.Bold("NIFTY Options Bot — type 'help' for commands, 'exit' to quit")
			if utils.IsMarketOpen() {
				output.Dim("Market is open until %s IST", utils.MarketCloseOn(time.Now()).Format("15:04"))
			} else {
				output.Dim("Market is closed. Next open: %s IST",
					utils.NextMarketOpen(time.Now()).Format("Mon 02 Jan 15:04"))
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				output.Printf("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					break
				}

				resp, err := app.dispatch(cmd.Context(), line)
				if err != nil {
					output.Error("%v", err)
					continue
				}
				if err := renderResponse(output, resp); err != nil {
					return err
				}
				output.Println()
			}
			return scanner.Err()
		},
	}
}

func newExpiriesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "expiries",
		Short: "List upcoming NIFTY expiry dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(app, cmd, "start")
		},
	}
}

func newAnalyzeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <expiry>",
		Short: "Analyze the option chain for one expiry date",
		Example: `  bot analyze 2025-01-30
  bot analyze 2025-01-30 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(app, cmd, "exp:"+args[0])
		},
	}
}

func newPaperCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "paper <CE|PE> <strike> <BUY|SELL> <lots> <price>",
		Short: "Open a simulated position",
		Example: `  bot paper CE 22500 SELL 1 150.00
  bot paper PE 22000 BUY 2 85.50`,
		Args: cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(app, cmd, "/paper "+strings.Join(args, " "))
		},
	}
}

func newPortfolioCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Show the paper portfolio with live marks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(app, cmd, "/portfolio")
		},
	}
}

func newCloseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "close <id>",
		Short: "Close an open simulated position at the last traded price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(app, cmd, "/close "+args[0])
		},
	}
}

func newResetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Wipe the paper portfolio back to initial funds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(app, cmd, "/reset")
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the closed-trade log",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				output.Error("Store unavailable; no history to show.")
				return nil
			}
			limit, _ := cmd.Flags().GetInt("limit")
			trades, err := app.Store.ClosedTrades(cmd.Context(), defaultUserID, limit)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Dim("No closed trades yet.")
				return nil
			}

			table := NewTable(output, "ID", "Option", "Action", "Lots", "Entry", "Exit", "Net P&L")
			for _, t := range trades {
				table.AddRow(
					fmt.Sprintf("%d", t.ID),
					fmt.Sprintf("%.0f %s", t.Strike, t.Type),
					string(t.Action),
					fmt.Sprintf("%d", t.Lots),
					utils.FormatIndianCurrency(t.EntryPrice),
					utils.FormatIndianCurrency(t.ExitPrice),
					output.FormatPnL(t.NetPnL),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Int("limit", 50, "maximum trades to show")
	return cmd
}

func newLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login [code-or-redirect-url]",
		Short: "Authorize with Upstox",
		Long: `Exchanges an Upstox authorization code for an access token.

Without an argument, prints the authorization URL and reads the code
(or the full redirect URL) from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			code := ""
			if len(args) == 1 {
				code = args[0]
			} else {
				resp, err := app.dispatch(cmd.Context(), "auth")
				if err != nil {
					return err
				}
				if err := renderResponse(output, resp); err != nil {
					return err
				}
				output.Println()
				output.Bold("Paste the authorization code (or the redirect URL) here:")
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if !scanner.Scan() {
					return fmt.Errorf("no authorization code provided")
				}
				code = strings.TrimSpace(scanner.Text())
				if code == "" {
					return fmt.Errorf("no authorization code provided")
				}
			}

			resp, err := app.dispatch(cmd.Context(), code)
			if err != nil {
				return err
			}
			if resp.NewAccessToken() != "" {
				output.Success("Authorized. Session saved.")
				output.Println()
			}
			return renderResponse(output, resp)
		},
	}
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored Upstox session",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := clearSession(); err != nil {
				return err
			}
			output.Success("Logged out.")
			return nil
		},
	}
}

// runOnce dispatches a single chat-grammar command and renders the response.
func runOnce(app *App, cmd *cobra.Command, input string) error {
	output := NewOutput(cmd)
	resp, err := app.dispatch(cmd.Context(), input)
	if err != nil {
		return err
	}
	return renderResponse(output, resp)
}
