// Candle Engine CLI
// This application fetches raw 1-minute market data, removes fake prints,
// resamples to a display timeframe and reports sequence quality.
//
// Usage:
//
//	candle-engine fetch --symbol AAPL --timeframe 5m --days 2
//	candle-engine inspect --symbol AAPL --days 1
//	candle-engine quality --symbol AAPL --days 5
//
// For detailed help on any command, use: candle-engine <command> --help
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/mdthewzrd/candle-engine/internal/config"
	"github.com/mdthewzrd/candle-engine/internal/engine"
	apperrors "github.com/mdthewzrd/candle-engine/internal/errors"
	"github.com/mdthewzrd/candle-engine/internal/logger"
	"github.com/mdthewzrd/candle-engine/internal/models"
	"github.com/mdthewzrd/candle-engine/internal/provider"
	"github.com/mdthewzrd/candle-engine/internal/quality"
)

const (
	Version    = "1.0.0"
	AppName    = "candle-engine"
	ConfigFile = "candle-engine.json"
)

// Exit codes following standard conventions
const (
	ExitSuccess       = 0
	ExitUsageError    = 1
	ExitConfigError   = 2
	ExitConnectionErr = 3
	ExitDataError     = 4
)

// CLI holds the wired application components.
type CLI struct {
	config    *config.AppConfig
	logManage *logger.Manager
	engine    *engine.Engine
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(ExitUsageError)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "--version", "-v":
		fmt.Printf("%s version %s\n", AppName, Version)
		return
	case "--help", "-h", "help":
		if len(args) > 0 {
			printCommandHelp(args[0])
		} else {
			printUsage()
		}
		return
	}

	cli := &CLI{}
	if err := cli.initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to initialize: %v\n", err)
		os.Exit(ExitConfigError)
	}
	defer cli.logManage.Close()

	var err error
	switch command {
	case "fetch":
		err = cli.handleFetch(ctx, args)
	case "inspect":
		err = cli.handleInspect(ctx, args)
	case "quality":
		err = cli.handleQuality(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown command '%s'\n\n", command)
		printUsage()
		os.Exit(ExitUsageError)
	}

	if err != nil {
		cli.logManage.Base().Error("command failed", "command", command, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		switch apperrors.KindOf(err) {
		case apperrors.KindNetwork, apperrors.KindTimeout, apperrors.KindRateLimit, apperrors.KindServerError:
			os.Exit(ExitConnectionErr)
		default:
			os.Exit(ExitDataError)
		}
	}
}

// initialize loads configuration, wires logging and builds the engine.
func (cli *CLI) initialize() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = filepath.Join(".", ConfigFile)
	}

	cfg, err := config.NewManager(configPath, nil).Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cli.config = cfg

	logManage, err := logger.NewManager(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	cli.logManage = logManage

	httpProvider := provider.NewHTTPProvider(cfg.Provider, logManage.Base())
	cli.engine = engine.New(httpProvider, cfg, logManage.Base())

	return nil
}

// handleFetch runs the full pipeline and prints the resampled series.
func (cli *CLI) handleFetch(ctx context.Context, args []string) error {
	flags, err := parseFetchFlags(args)
	if err != nil {
		return err
	}
	if flags.Help {
		printCommandHelp("fetch")
		return nil
	}
	if flags.Symbol == "" {
		return fmt.Errorf("--symbol is required")
	}

	timeframe, err := models.ParseTimeframe(flags.Timeframe)
	if err != nil {
		return err
	}

	if flags.Days > 0 {
		cli.engine = cli.engineWithLookback(flags.Days)
	}

	result, err := cli.engine.Run(ctx, strings.ToUpper(flags.Symbol), timeframe)
	if err != nil {
		return err
	}

	fmt.Printf("📊 %s %s: %d candles (%d raw, %d dropped)\n",
		result.Symbol, result.Timeframe, len(result.Candles), result.RawCount, result.DroppedCount)
	printQualitySummary(result.Quality)
	fmt.Println()

	switch flags.Format {
	case "json":
		return outputJSON(result.Candles)
	case "csv":
		return outputCSV(result.Candles)
	default:
		return outputTable(result.Candles, flags.Limit)
	}
}

// handleInspect prints the raw normalized series with detected anomalies,
// without filtering anything.
func (cli *CLI) handleInspect(ctx context.Context, args []string) error {
	flags, err := parseFetchFlags(args)
	if err != nil {
		return err
	}
	if flags.Help {
		printCommandHelp("inspect")
		return nil
	}
	if flags.Symbol == "" {
		return fmt.Errorf("--symbol is required")
	}

	if flags.Days > 0 {
		cli.engine = cli.engineWithLookback(flags.Days)
	}

	candles, anomalies, err := cli.engine.Inspect(ctx, strings.ToUpper(flags.Symbol))
	if err != nil {
		return err
	}

	if len(anomalies) == 0 {
		fmt.Printf("✅ No anomalies found in %d candles for %s\n", len(candles), strings.ToUpper(flags.Symbol))
		return nil
	}

	fmt.Printf("🔍 Found %d anomalies in %d candles for %s:\n\n",
		len(anomalies), len(candles), strings.ToUpper(flags.Symbol))

	for i, anomaly := range anomalies {
		timestamp := ""
		if anomaly.Index < len(candles) {
			timestamp = candles[anomaly.Index].Timestamp.Format("2006-01-02 15:04")
		}
		fmt.Printf("%d. [%s] index %d (%s): %s\n",
			i+1, anomaly.Type, anomaly.Index, timestamp, anomaly.Description)
	}

	return nil
}

// handleQuality runs the pipeline and prints only the quality report.
func (cli *CLI) handleQuality(ctx context.Context, args []string) error {
	flags, err := parseFetchFlags(args)
	if err != nil {
		return err
	}
	if flags.Help {
		printCommandHelp("quality")
		return nil
	}
	if flags.Symbol == "" {
		return fmt.Errorf("--symbol is required")
	}

	timeframe, err := models.ParseTimeframe(flags.Timeframe)
	if err != nil {
		return err
	}

	if flags.Days > 0 {
		cli.engine = cli.engineWithLookback(flags.Days)
	}

	result, err := cli.engine.Run(ctx, strings.ToUpper(flags.Symbol), timeframe)
	if err != nil {
		return err
	}

	if flags.Format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result.Quality)
	}

	fmt.Printf("📊 Quality Report for %s\n\n", result.Symbol)
	printQualitySummary(result.Quality)
	fmt.Printf("Average Volume:   %.1f\n", result.Quality.AverageVolume)
	fmt.Printf("Zero-Volume Bars: %d\n", result.Quality.ZeroVolumeCount)
	fmt.Printf("Dropped Bars:     %d\n", result.DroppedCount)
	return nil
}

// engineWithLookback rebuilds the engine with an overridden lookback window.
func (cli *CLI) engineWithLookback(days int) *engine.Engine {
	cfg := *cli.config
	cfg.Provider.LookbackDays = days
	httpProvider := provider.NewHTTPProvider(cfg.Provider, cli.logManage.Base())
	return engine.New(httpProvider, &cfg, cli.logManage.Base())
}

func printQualitySummary(report quality.Report) {
	fmt.Printf("Completeness: %.1f%% (%d of %.0f expected), quality: %s\n",
		report.Completeness*100, report.TotalCandles, report.ExpectedCandles, report.QualityLabel)
}

// FetchFlags represents flags shared by the fetch, inspect and quality commands.
type FetchFlags struct {
	Symbol    string
	Timeframe string
	Days      int
	Limit     int
	Format    string
	Help      bool
}

// parseFetchFlags parses command line arguments for the fetch-family commands.
func parseFetchFlags(args []string) (*FetchFlags, error) {
	flags := &FetchFlags{
		Timeframe: "5m",    // Default display timeframe
		Limit:     50,      // Default table row limit
		Format:    "table", // Default output format
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--symbol", "-s":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--symbol requires a value")
			}
			flags.Symbol = args[i+1]
			i++
		case "--timeframe", "-t":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--timeframe requires a value")
			}
			flags.Timeframe = args[i+1]
			i++
		case "--days", "-d":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--days requires a value")
			}
			days, err := strconv.Atoi(args[i+1])
			if err != nil {
				return nil, fmt.Errorf("invalid days value: %w", err)
			}
			flags.Days = days
			i++
		case "--limit", "-l":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--limit requires a value")
			}
			limit, err := strconv.Atoi(args[i+1])
			if err != nil {
				return nil, fmt.Errorf("invalid limit value: %w", err)
			}
			flags.Limit = limit
			i++
		case "--format", "-f":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--format requires a value")
			}
			format := args[i+1]
			if format != "json" && format != "csv" && format != "table" {
				return nil, fmt.Errorf("invalid format, must be: json, csv, or table")
			}
			flags.Format = format
			i++
		case "--help", "-h":
			flags.Help = true
		default:
			return nil, fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	return flags, nil
}

// Output formatting functions

func outputJSON(candles []models.Candle) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(candles)
}

func outputCSV(candles []models.Candle) error {
	fmt.Println("timestamp,symbol,interval,open,high,low,close,volume")
	for _, candle := range candles {
		fmt.Printf("%s,%s,%s,%s,%s,%s,%s,%d\n",
			candle.Timestamp.Format("2006-01-02T15:04:05Z"),
			candle.Symbol,
			candle.Interval,
			candle.Open,
			candle.High,
			candle.Low,
			candle.Close,
			candle.Volume)
	}
	return nil
}

func outputTable(candles []models.Candle, limit int) error {
	if limit > 0 && len(candles) > limit {
		candles = candles[:limit]
	}

	fmt.Printf("%-20s %-8s %-8s %-12s %-12s %-12s %-12s %-15s\n",
		"Timestamp", "Symbol", "Interval", "Open", "High", "Low", "Close", "Volume")
	fmt.Println(strings.Repeat("-", 100))

	for _, candle := range candles {
		fmt.Printf("%-20s %-8s %-8s %-12s %-12s %-12s %-12s %-15d\n",
			candle.Timestamp.Format("2006-01-02 15:04"),
			candle.Symbol,
			candle.Interval,
			candle.Open,
			candle.High,
			candle.Low,
			candle.Close,
			candle.Volume)
	}

	if limit > 0 && len(candles) == limit {
		fmt.Printf("\n... showing first %d results (use --limit to see more)\n", limit)
	}

	return nil
}

// Help text

func printUsage() {
	fmt.Printf(`%s - fake print removal and multi-resolution candle aggregation

Usage:
  %s <command> [flags]

Commands:
  fetch     Fetch, clean and resample a symbol's candles
  inspect   Show detected anomalies without filtering
  quality   Print the quality report for a symbol

Flags:
  --version, -v   Print version information
  --help, -h      Show this help

Use "%s <command> --help" for command-specific flags.
`, AppName, AppName, AppName)
}

func printCommandHelp(command string) {
	switch command {
	case "fetch":
		fmt.Printf(`Fetch, clean and resample a symbol's candles.

Usage:
  %s fetch --symbol AAPL [flags]

Flags:
  --symbol, -s      Ticker symbol (required)
  --timeframe, -t   Display timeframe: 5m, 15m, 1h, 1d (default "5m")
  --days, -d        Lookback window in days (default from config)
  --limit, -l       Maximum table rows to print (default 50)
  --format, -f      Output format: table, csv, json (default "table")
`, AppName)
	case "inspect":
		fmt.Printf(`Show anomalies detected in the raw 1-minute series without filtering.

Usage:
  %s inspect --symbol AAPL [flags]

Flags:
  --symbol, -s   Ticker symbol (required)
  --days, -d     Lookback window in days (default from config)
`, AppName)
	case "quality":
		fmt.Printf(`Print the quality report for a symbol's cleaned series.

Usage:
  %s quality --symbol AAPL [flags]

Flags:
  --symbol, -s      Ticker symbol (required)
  --timeframe, -t   Display timeframe used for the run (default "5m")
  --days, -d        Lookback window in days (default from config)
  --format, -f      Output format: table, json (default "table")
`, AppName)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command '%s'\n\n", command)
		printUsage()
	}
}
