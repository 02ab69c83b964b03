package engine

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vizzzzk/nifty-options-bot/internal/analysis"
	"github.com/vizzzzk/nifty-options-bot/internal/costs"
	apperrors "github.com/vizzzzk/nifty-options-bot/internal/errors"
	"github.com/vizzzzk/nifty-options-bot/internal/ledger"
	"github.com/vizzzzk/nifty-options-bot/internal/models"
	"github.com/vizzzzk/nifty-options-bot/internal/upstox"
	"github.com/vizzzzk/nifty-options-bot/pkg/utils"
)

// vixInstrumentKey is quoted best-effort for the analysis payload.
const vixInstrumentKey = "NSE_INDEX|India VIX"

var authCodeRe = regexp.MustCompile(`^[a-zA-Z0-9]{6,100}$`)

// Router parses the command grammar, enforces preconditions, and dispatches
// to the analyzer and ledger. It is stateless across invocations.
type Router struct {
	market       upstox.MarketDataClient
	auth         upstox.AuthClient
	ledger       *ledger.Ledger
	schedule     costs.Schedule
	initialFunds float64
	logger       zerolog.Logger
	now          func() time.Time
}

// Config holds router dependencies.
type Config struct {
	Market       upstox.MarketDataClient
	Auth         upstox.AuthClient
	Ledger       *ledger.Ledger
	Schedule     costs.Schedule
	InitialFunds float64
	Logger       zerolog.Logger
}

// NewRouter creates a command router.
func NewRouter(cfg Config) *Router {
	return &Router{
		market:       cfg.Market,
		auth:         cfg.Auth,
		ledger:       cfg.Ledger,
		schedule:     cfg.Schedule,
		initialFunds: cfg.InitialFunds,
		logger:       cfg.Logger.With().Str("component", "router").Logger(),
		now:          time.Now,
	}
}

// WithClock overrides the router clock for tests.
func (r *Router) WithClock(now func() time.Time) *Router {
	r.now = now
	return r
}

// Handle processes one command and returns the response payload plus the next
// portfolio value embedded in it. All domain errors are recovered here and
// converted into ErrorResponse; nothing escapes as a raw error.
func (r *Router) Handle(ctx context.Context, input, token string, pf models.Portfolio) Response {
	command := strings.TrimSpace(input)
	logger := r.logger.With().Str("request_id", uuid.NewString()).Logger()
	logger.Debug().Str("command", firstWord(command)).Msg("handling command")

	// An authorization code pasted from the redirect URL short-circuits
	// everything else.
	if code, ok := extractAuthCode(command); ok {
		return r.handleAuthCode(ctx, code, pf)
	}

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return r.unknown(pf)
	}
	keyword := strings.ToLower(parts[0])

	switch {
	case keyword == "start":
		return r.handleStart(ctx, token, pf)
	case keyword == "auth":
		return ErrorResponse{
			base:    base{Portfolio: pf},
			Message: "To get a new access token, you need to authorize this application with Upstox. Click the link below.",
			AuthURL: r.auth.AuthorizationURL(),
		}
	case keyword == "help":
		return ErrorResponse{base: base{Portfolio: pf}, Message: helpText}
	case keyword == "/paper":
		return r.handlePaper(ctx, parts, token, pf)
	case keyword == "/portfolio":
		return r.handlePortfolio(ctx, token, pf)
	case keyword == "/close":
		return r.handleClose(ctx, parts, token, pf)
	case keyword == "/reset":
		return r.handleReset(pf)
	case strings.HasPrefix(keyword, "exp:"):
		return r.handleAnalysis(ctx, strings.TrimPrefix(parts[0], "exp:"), token, pf)
	default:
		return r.unknown(pf)
	}
}

// extractAuthCode recognizes a bare authorization code or a redirect URL
// carrying one in its `code` query parameter.
func extractAuthCode(command string) (string, bool) {
	if strings.Contains(command, "://") {
		u, err := url.Parse(command)
		if err == nil {
			if code := u.Query().Get("code"); code != "" {
				return code, true
			}
		}
		return "", false
	}
	if isExplicitCommand(command) {
		return "", false
	}
	if authCodeRe.MatchString(command) {
		return command, true
	}
	return "", false
}

func isExplicitCommand(command string) bool {
	keyword := strings.ToLower(firstWord(command))
	switch keyword {
	case "start", "auth", "help", "/paper", "/portfolio", "/close", "/reset":
		return true
	}
	return strings.HasPrefix(keyword, "exp:")
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

func (r *Router) handleAuthCode(ctx context.Context, code string, pf models.Portfolio) Response {
	token, err := r.auth.ExchangeCode(ctx, code)
	if err != nil {
		return ErrorResponse{
			base:    base{Portfolio: pf},
			Message: fmt.Sprintf("Authorization error: %v", err),
		}
	}

	expiries, err := r.market.ListExpiries(ctx, token)
	if err != nil {
		return r.errorResponse(pf, fmt.Errorf("failed to fetch expiries: %w", err))
	}

	return ExpiriesResponse{
		base:     base{Portfolio: pf, AccessToken: token},
		Expiries: expiries,
	}
}

func (r *Router) handleStart(ctx context.Context, token string, pf models.Portfolio) Response {
	expiries, err := r.market.ListExpiries(ctx, token)
	if err != nil {
		return r.errorResponse(pf, fmt.Errorf("failed to fetch expiries: %w", err))
	}
	return ExpiriesResponse{base: base{Portfolio: pf}, Expiries: expiries}
}

func (r *Router) handleAnalysis(ctx context.Context, expiry, token string, pf models.Portfolio) Response {
	if _, err := time.Parse("2006-01-02", expiry); err != nil {
		return ErrorResponse{
			base:    base{Portfolio: pf},
			Message: fmt.Sprintf("Invalid expiry date %q. Expected exp:YYYY-MM-DD.", expiry),
		}
	}

	chain, err := r.market.GetOptionChain(ctx, token, expiry)
	if err != nil {
		return r.errorResponse(pf, fmt.Errorf("failed to analyze expiry %s: %w", expiry, err))
	}
	if len(chain.Rows) == 0 {
		return ErrorResponse{
			base:    base{Portfolio: pf},
			Message: fmt.Sprintf("No option chain data found for %s.", expiry),
		}
	}

	dte, err := analysis.DaysToExpiry(expiry, r.now())
	if err != nil {
		return r.errorResponse(pf, err)
	}

	marketAnalysis := analysis.AnalyzeSentiment(chain)
	opps := analysis.FindOpportunities(chain, marketAnalysis)

	var maxPain *float64
	if mp, ok := analysis.MaxPain(chain.Rows); ok {
		maxPain = &mp
	}

	// VIX is garnish; its absence never fails the analysis.
	var vix *float64
	if v, err := r.market.GetQuote(ctx, token, vixInstrumentKey); err == nil && v > 0 {
		vix = &v
	}

	next := pf.Clone()
	next.LastActiveExpiry = expiry

	return AnalysisResponse{
		base:           base{Portfolio: next},
		SpotPrice:      chain.SpotPrice,
		DTE:            dte,
		LotSize:        r.schedule.LotSize,
		Expiry:         expiry,
		Timestamp:      r.now().In(utils.IndiaLocation).Format("15:04:05"),
		MarketAnalysis: marketAnalysis,
		Opportunities:  opps.Top,
		QualifiedCE:    opps.QualifiedCE,
		QualifiedPE:    opps.QualifiedPE,
		Recommendation: opps.Recommendation,
		VIX:            vix,
		MaxPain:        maxPain,
	}
}

func (r *Router) handlePaper(ctx context.Context, parts []string, token string, pf models.Portfolio) Response {
	req, err := parsePaperCommand(parts)
	if err != nil {
		return ErrorResponse{
			base:    base{Portfolio: pf},
			Message: "Invalid /paper command format. Expected: /paper [CE/PE] [STRIKE] [BUY/SELL] [LOTS] [PRICE]",
		}
	}

	next, result, err := r.ledger.OpenPosition(ctx, pf, token, req)
	if err != nil {
		return r.errorResponse(pf, err)
	}

	return PaperTradeResponse{
		base:    base{Portfolio: next},
		Message: renderPaperTrade(result, r.schedule.LotSize),
	}
}

func parsePaperCommand(parts []string) (ledger.OpenRequest, error) {
	if len(parts) != 6 {
		return ledger.OpenRequest{}, apperrors.NewValidationError("args", len(parts)-1, "expected 5 arguments")
	}

	optType := models.OptionType(strings.ToUpper(parts[1]))
	if optType != models.CE && optType != models.PE {
		return ledger.OpenRequest{}, apperrors.NewValidationError("type", parts[1], "must be CE or PE")
	}

	strike, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || strike <= 0 {
		return ledger.OpenRequest{}, apperrors.NewValidationError("strike", parts[2], "must be a positive number")
	}

	action := models.TradeAction(strings.ToUpper(parts[3]))
	if action != models.ActionBuy && action != models.ActionSell {
		return ledger.OpenRequest{}, apperrors.NewValidationError("action", parts[3], "must be BUY or SELL")
	}

	lots, err := strconv.Atoi(parts[4])
	if err != nil || lots <= 0 {
		return ledger.OpenRequest{}, apperrors.NewValidationError("lots", parts[4], "must be a positive integer")
	}

	price, err := strconv.ParseFloat(parts[5], 64)
	if err != nil || price <= 0 {
		return ledger.OpenRequest{}, apperrors.NewValidationError("price", parts[5], "must be a positive number")
	}

	return ledger.OpenRequest{
		Type:   optType,
		Strike: strike,
		Action: action,
		Lots:   lots,
		Price:  price,
	}, nil
}

func (r *Router) handlePortfolio(ctx context.Context, token string, pf models.Portfolio) Response {
	report := r.ledger.MarkToMarket(ctx, pf, token)
	return PortfolioResponse{
		base:    base{Portfolio: pf},
		Message: renderPortfolio(pf, report),
		Report:  report,
	}
}

func (r *Router) handleClose(ctx context.Context, parts []string, token string, pf models.Portfolio) Response {
	if len(parts) < 2 {
		return ErrorResponse{
			base:    base{Portfolio: pf},
			Message: "Please specify a position ID to close. Example: /close 1",
		}
	}
	positionID, err := strconv.Atoi(parts[1])
	if err != nil {
		return ErrorResponse{
			base:    base{Portfolio: pf},
			Message: "Please specify a valid position ID to close. Example: /close 1",
		}
	}

	next, result, err := r.ledger.ClosePosition(ctx, pf, token, positionID)
	if err != nil {
		return r.errorResponse(pf, err)
	}

	return ClosePositionResponse{
		base:    base{Portfolio: next},
		Message: renderClosedTrade(next, result),
	}
}

func (r *Router) handleReset(pf models.Portfolio) Response {
	next := r.ledger.Reset(r.initialFunds)
	return ResetResponse{
		base: base{Portfolio: next},
		Message: fmt.Sprintf("Portfolio reset. Starting funds: %s. All positions and history cleared.",
			utils.FormatIndianCurrency(next.InitialFunds)),
	}
}

func (r *Router) unknown(pf models.Portfolio) Response {
	return ErrorResponse{
		base:    base{Portfolio: pf},
		Message: "I didn't understand that. Try 'start' or 'help'.",
	}
}

// errorResponse maps a domain error onto the error payload, attaching the
// re-authorization URL when the token is the problem.
func (r *Router) errorResponse(pf models.Portfolio, err error) ErrorResponse {
	resp := ErrorResponse{base: base{Portfolio: pf}}

	switch {
	case apperrors.Is(err, apperrors.ErrUnauthorized):
		resp.Message = "Your Upstox access token is missing, invalid, or expired. Please use the 'auth' command to get a new one."
		resp.AuthURL = r.auth.AuthorizationURL()
	case apperrors.Is(err, apperrors.ErrNoActiveExpiry):
		resp.Message = "Please run an analysis for an expiry date first before placing a trade."
	case apperrors.Is(err, apperrors.ErrMarketClosed):
		next := utils.NextMarketOpen(r.now())
		resp.Message = fmt.Sprintf("Market is closed. NSE F&O hours are Mon-Fri 09:15-15:30 IST. Next open: %s.",
			next.Format("Mon 02 Jan 15:04"))
	case apperrors.Is(err, apperrors.ErrInstrumentNotFound):
		resp.Message = fmt.Sprintf("Could not find that instrument in the option chain. Cannot place trade. (%v)", err)
	case apperrors.Is(err, apperrors.ErrInsufficientFunds):
		resp.Message = fmt.Sprintf("Insufficient funds. %v.", err)
	case apperrors.Is(err, apperrors.ErrPositionNotFound):
		resp.Message = fmt.Sprintf("%v.", err)
	case apperrors.Is(err, apperrors.ErrQuoteUnavailable):
		resp.Message = "Could not fetch a live price for that position. Cannot close it right now."
	default:
		resp.Message = fmt.Sprintf("Something went wrong: %v", err)
	}

	r.logger.Warn().Err(err).Msg("command failed")
	return resp
}
