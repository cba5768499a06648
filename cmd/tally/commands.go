package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/bobmcallan/tally/internal/app"
	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/server"
)

// Commands lists every tally subcommand.
var Commands = []subcommands.Command{
	&positionsCmd{},
	&addCmd{},
	&reduceCmd{},
	&removeCmd{},
	&reportCmd{},
	&quoteCmd{},
	&watchCmd{},
	&serveCmd{},
	&versionCmd{},
}

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout

func openApp() (*app.App, subcommands.ExitStatus) {
	a, err := app.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, subcommands.ExitFailure
	}
	return a, subcommands.ExitSuccess
}

// exitFor maps service errors onto exit codes: bad input is a usage error.
func exitFor(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if errors.Is(err, models.ErrInvalidInput) {
		return subcommands.ExitUsageError
	}
	return subcommands.ExitFailure
}

// printMarkdown renders md for the terminal, falling back to the raw text.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		if out, err := r.Render(md); err == nil {
			fmt.Fprint(stdout, out)
			return
		}
	}
	fmt.Fprint(stdout, md)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- positions ---

type positionsCmd struct {
	asJSON bool
}

func (*positionsCmd) Name() string     { return "positions" }
func (*positionsCmd) Synopsis() string { return "list current positions" }
func (*positionsCmd) Usage() string {
	return `tally positions [-json]

  Lists every position in the ledger with its average cost and cost basis.
`
}

func (c *positionsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.asJSON, "json", false, "print JSON instead of markdown")
}

func (c *positionsCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, status := openApp()
	if a == nil {
		return status
	}
	defer a.Close()

	positions := a.PortfolioService.GetPositions()
	if c.asJSON {
		if err := printJSON(positions); err != nil {
			return exitFor(err)
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(formatPositions(positions))
	return subcommands.ExitSuccess
}

// --- add ---

type addCmd struct {
	ticker   string
	quantity int64
	price    float64
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a purchase" }
func (*addCmd) Usage() string {
	return `tally add -t <ticker> -q <quantity> -p <price>

  Adds shares to a position. Buying more of a held ticker averages the cost.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "t", "", "ticker symbol")
	f.Int64Var(&c.quantity, "q", 0, "number of shares bought")
	f.Float64Var(&c.price, "p", 0, "price paid per share")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, status := openApp()
	if a == nil {
		return status
	}
	defer a.Close()

	p, err := a.PortfolioService.AddPosition(ctx, c.ticker, c.quantity, c.price)
	if err != nil {
		return exitFor(err)
	}
	fmt.Fprintf(stdout, "%s: %d @ %s\n", p.Ticker, p.Quantity, common.FormatMoney(p.AverageCost))
	return subcommands.ExitSuccess
}

// --- reduce ---

type reduceCmd struct {
	ticker   string
	quantity int64
}

func (*reduceCmd) Name() string     { return "reduce" }
func (*reduceCmd) Synopsis() string { return "record a sale" }
func (*reduceCmd) Usage() string {
	return `tally reduce -t <ticker> -q <quantity>

  Removes shares from a position. Selling all shares closes the position.
`
}

func (c *reduceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "t", "", "ticker symbol")
	f.Int64Var(&c.quantity, "q", 0, "number of shares sold")
}

func (c *reduceCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, status := openApp()
	if a == nil {
		return status
	}
	defer a.Close()

	p, removed, err := a.PortfolioService.ReducePosition(ctx, c.ticker, c.quantity)
	if err != nil {
		return exitFor(err)
	}
	if removed {
		fmt.Fprintf(stdout, "%s: position closed\n", p.Ticker)
	} else {
		fmt.Fprintf(stdout, "%s: %d @ %s\n", p.Ticker, p.Quantity, common.FormatMoney(p.AverageCost))
	}
	return subcommands.ExitSuccess
}

// --- remove ---

type removeCmd struct {
	ticker string
}

func (*removeCmd) Name() string     { return "remove" }
func (*removeCmd) Synopsis() string { return "delete a position" }
func (*removeCmd) Usage() string {
	return `tally remove -t <ticker>

  Deletes a position regardless of quantity.
`
}

func (c *removeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "t", "", "ticker symbol")
}

func (c *removeCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, status := openApp()
	if a == nil {
		return status
	}
	defer a.Close()

	if err := a.PortfolioService.RemovePosition(ctx, c.ticker); err != nil {
		return exitFor(err)
	}
	fmt.Fprintf(stdout, "%s: removed\n", models.NormalizeTicker(c.ticker))
	return subcommands.ExitSuccess
}

// --- report ---

type reportCmd struct {
	period  string
	asJSON  bool
	refresh bool
	timeout time.Duration
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "show portfolio performance" }
func (*reportCmd) Usage() string {
	return `tally report [-period 1mo] [-json] [-refresh] [-timeout 2m]

  Fetches prices for every position and reports composition, daily value,
  daily change, period and since-purchase returns, and top/flop performers.
  Periods: 1d, 5d, 1mo, 3mo, 6mo, 1y, 5y, max.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "", "report period (defaults to report.default_period)")
	f.BoolVar(&c.asJSON, "json", false, "print JSON instead of markdown")
	f.BoolVar(&c.refresh, "refresh", false, "ignore cached prices")
	f.DurationVar(&c.timeout, "timeout", 2*time.Minute, "abandon the report after this long")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, status := openApp()
	if a == nil {
		return status
	}
	defer a.Close()

	period := a.DefaultPeriod
	if c.period != "" {
		p, err := models.ParsePeriod(c.period)
		if err != nil {
			return exitFor(err)
		}
		period = p
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.refresh {
		if err := a.RefreshPrices(ctx); err != nil {
			return exitFor(err)
		}
	}

	report, err := a.PortfolioService.BuildReport(ctx, period)
	if err != nil {
		return exitFor(err)
	}
	if c.asJSON {
		if err := printJSON(report); err != nil {
			return exitFor(err)
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(formatReport(report))
	return subcommands.ExitSuccess
}

// --- quote ---

type quoteCmd struct {
	ticker  string
	period  string
	refresh bool
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "show the price history of one ticker" }
func (*quoteCmd) Usage() string {
	return `tally quote -t <ticker> [-period 5d] [-refresh]

  Fetches daily closes for any ticker, held or not.
`
}

func (c *quoteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "t", "", "ticker symbol")
	f.StringVar(&c.period, "period", string(models.Period5D), "history period")
	f.BoolVar(&c.refresh, "refresh", false, "ignore cached prices")
}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	period, err := models.ParsePeriod(c.period)
	if err != nil {
		return exitFor(err)
	}

	a, status := openApp()
	if a == nil {
		return status
	}
	defer a.Close()

	if c.refresh && models.NormalizeTicker(c.ticker) != "" {
		if err := a.RefreshPrices(ctx, c.ticker); err != nil {
			return exitFor(err)
		}
	}

	series, err := a.PortfolioService.Quote(ctx, c.ticker, period)
	if err != nil {
		return exitFor(err)
	}
	printMarkdown(formatQuote(series))
	return subcommands.ExitSuccess
}

// --- watch ---

type watchCmd struct {
	period string
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "refresh the report on a schedule until interrupted" }
func (*watchCmd) Usage() string {
	return `tally watch [-period 1mo]

  Prints a report now and again on every report.refresh_schedule tick.
  Stops on SIGINT or SIGTERM.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "", "report period (defaults to report.default_period)")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, status := openApp()
	if a == nil {
		return status
	}
	defer a.Close()

	if c.period != "" {
		p, err := models.ParsePeriod(c.period)
		if err != nil {
			return exitFor(err)
		}
		a.DefaultPeriod = p
	}

	common.PrintBanner(os.Stdout, a.Config, a.Logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.StartWarmCache()
	if err := a.StartRefreshScheduler(ctx); err != nil {
		return exitFor(fmt.Errorf("report.refresh_schedule: %w", err))
	}

	worker := a.ReportWorker()
	worker.Request(a.DefaultPeriod)

	for {
		select {
		case <-ctx.Done():
			a.Logger.Info().Msg("Shutting down")
			return subcommands.ExitSuccess
		case res, ok := <-worker.Results():
			if !ok {
				return subcommands.ExitSuccess
			}
			if res.Err != nil {
				a.Logger.Warn().Err(res.Err).Str("period", res.Period.String()).Msg("Report refresh failed")
				continue
			}
			printMarkdown(formatReport(res.Report))
		}
	}
}

// --- serve ---

type serveCmd struct {
	port int
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the JSON REST API" }
func (*serveCmd) Usage() string {
	return `tally serve [-port 8790]

  Serves the ledger, reports and quotes over HTTP. The latest scheduled
  refresh is available at /api/report/latest. Stops on SIGINT or SIGTERM.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.port, "port", 0, "listen port (defaults to server.port)")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, status := openApp()
	if a == nil {
		return status
	}
	defer a.Close()

	if c.port > 0 {
		a.Config.Server.Port = c.port
	}

	common.PrintBanner(os.Stdout, a.Config, a.Logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.StartWarmCache()
	if err := a.StartRefreshScheduler(ctx); err != nil {
		return exitFor(fmt.Errorf("report.refresh_schedule: %w", err))
	}

	srv := server.NewServer(a)
	a.ReportWorker().Request(a.DefaultPeriod)
	go srv.FollowReports(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.Logger.Error().Err(err).Msg("HTTP server failed")
		return subcommands.ExitFailure
	case <-ctx.Done():
	}

	a.Logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	a.Logger.Info().Msg("Server stopped")
	return subcommands.ExitSuccess
}

// --- version ---

type versionCmd struct{}

func (*versionCmd) Name() string             { return "version" }
func (*versionCmd) Synopsis() string         { return "print the version" }
func (*versionCmd) Usage() string            { return "tally version\n" }
func (*versionCmd) SetFlags(f *flag.FlagSet) {}

func (*versionCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	common.LoadVersionFromFile()
	fmt.Fprintln(stdout, common.GetFullVersion())
	return subcommands.ExitSuccess
}
