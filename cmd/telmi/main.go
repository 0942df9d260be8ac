package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/telmilabs/telmi/internal/config"
	"github.com/telmilabs/telmi/pkg/clickhouse"
	"github.com/telmilabs/telmi/pkg/pipeline"
	"github.com/telmilabs/telmi/pkg/schema"

	_ "net/http/pprof"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultMetricsAddr = "0.0.0.0:0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	showVersionFlag := flag.Bool("version", false, "Show version and exit")
	verboseFlag := flag.Bool("verbose", false, "Enable verbose (debug) logging")
	enablePprofFlag := flag.Bool("enable-pprof", false, "Enable pprof server")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	questionFlag := flag.String("question", "", "Answer a single question and exit instead of reading from stdin")

	// ClickHouse configuration flags (used as override if env vars not wanted)
	clickhouseAddrFlag := flag.String("clickhouse-addr", "", "ClickHouse server address (or set CLICKHOUSE_ADDR env var)")
	clickhouseDatabaseFlag := flag.String("clickhouse-database", "", "ClickHouse database name (or set CLICKHOUSE_DATABASE env var)")
	clickhouseUsernameFlag := flag.String("clickhouse-username", "", "ClickHouse username (or set CLICKHOUSE_USERNAME env var)")
	clickhousePasswordFlag := flag.String("clickhouse-password", "", "ClickHouse password (or set CLICKHOUSE_PASSWORD env var)")

	flag.Parse()

	if *showVersionFlag {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		return nil
	}

	// Local development convenience, ignored when no .env file exists.
	_ = godotenv.Load()

	log := newLogger(*verboseFlag)

	cfg, err := config.LoadFromEnv(*metricsAddrFlag, *verboseFlag, *enablePprofFlag)
	if err != nil {
		return err
	}

	// Override config with flags if flags are provided (flags take precedence)
	if *clickhouseAddrFlag != "" {
		cfg.ClickhouseAddr = *clickhouseAddrFlag
	}
	if *clickhouseDatabaseFlag != "" {
		cfg.ClickhouseDatabase = *clickhouseDatabaseFlag
	}
	if *clickhouseUsernameFlag != "" {
		cfg.ClickhouseUsername = *clickhouseUsernameFlag
	}
	if *clickhousePasswordFlag != "" {
		cfg.ClickhousePassword = *clickhousePasswordFlag
	}

	// Start pprof server if enabled
	if cfg.EnablePprof {
		go func() {
			log.Info("starting pprof server", "address", "localhost:6060")
			if err := http.ListenAndServe("localhost:6060", nil); err != nil {
				log.Error("failed to start pprof server", "error", err)
			}
		}()
	}

	// Start prometheus metrics server
	if cfg.MetricsAddr != "" {
		pipeline.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", cfg.MetricsAddr)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	clickhouseClient, err := clickhouse.NewClient(ctx, log, clickhouse.Config{
		Addr:     cfg.ClickhouseAddr,
		Database: cfg.ClickhouseDatabase,
		Username: cfg.ClickhouseUsername,
		Password: cfg.ClickhousePassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create clickhouse client: %w", err)
	}
	defer clickhouseClient.Close()

	catalog, err := schema.Load()
	if err != nil {
		return fmt.Errorf("failed to load schema catalog: %w", err)
	}

	exporter, err := pipeline.NewCSVExporter(cfg.ExportDir)
	if err != nil {
		return fmt.Errorf("failed to create exporter: %w", err)
	}

	p, err := pipeline.New(&pipeline.Config{
		Logger:       log,
		LLM:          pipeline.NewAnthropicLLMClient(log, anthropic.Model(cfg.Model), int64(cfg.MaxTokens)),
		Querier:      pipeline.NewClickHouseQuerier(clickhouseClient),
		Exporter:     exporter,
		Catalog:      catalog,
		MaxRows:      cfg.MaxRows,
		QueryTimeout: cfg.QueryTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	if *questionFlag != "" {
		return answer(ctx, p, *questionFlag)
	}

	return repl(ctx, p, log)
}

// answer processes a single question and prints the response.
func answer(ctx context.Context, p *pipeline.Pipeline, question string) error {
	resp, err := p.Process(ctx, question)
	if err != nil {
		return fmt.Errorf("failed to process question: %w", err)
	}
	printResponse(resp)
	return nil
}

// repl reads questions from stdin until EOF or interrupt.
func repl(ctx context.Context, p *pipeline.Pipeline, log *slog.Logger) error {
	fmt.Println("telmi - ask questions about your telecom data (Ctrl-D to exit)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		resp, err := p.Process(ctx, question)
		if err != nil {
			log.Error("failed to process question", "error", err)
			continue
		}
		printResponse(resp)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	log.Info("shutting down")
	return nil
}

func printResponse(resp *pipeline.Response) {
	fmt.Println()
	fmt.Println(resp.Response)
	for _, att := range resp.Attachments {
		fmt.Printf("[attachment] %s (%s): %s\n", att.Filename, att.Size, att.Path)
	}
	fmt.Println()
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(formatRFC3339Millis(t))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
