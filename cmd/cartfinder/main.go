// Command cartfinder locates add-to-cart, cart and checkout buttons.
//
// Usage:
//
//	cartfinder -url https://shop.example/p/1            # one scan, JSON report on stdout
//	cartfinder -html page.html -kind add_to_cart        # rank a saved page
//	cartfinder -url https://shop.example/p/1 -watch     # re-rank on DOM changes
//	cartfinder -serve -config cartfinder.yaml           # HTTP API
//	cartfinder -mcp                                     # MCP server on stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/cartfinder"
	"github.com/hazyhaar/cartfinder/config"
	"github.com/hazyhaar/cartfinder/report"
	"github.com/hazyhaar/cartfinder/store"
)

type options struct {
	configPath string
	url        string
	htmlPath   string
	kinds      string
	mode       string
	serve      bool
	mcp        bool
	watch      bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to cartfinder.yaml config file")
	flag.StringVar(&o.url, "url", "", "page URL to scan")
	flag.StringVar(&o.htmlPath, "html", "", "rank a local HTML file instead of fetching")
	flag.StringVar(&o.kinds, "kind", "", "comma-separated kinds: add_to_cart, cart, checkout (default all)")
	flag.StringVar(&o.mode, "mode", "", "acquisition mode: static, browser, auto (default from config)")
	flag.BoolVar(&o.serve, "serve", false, "serve the HTTP API")
	flag.BoolVar(&o.mcp, "mcp", false, "serve MCP tools on stdio")
	flag.BoolVar(&o.watch, "watch", false, "watch -url and print a report whenever the best buttons change")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("cartfinder: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	if !o.serve && !o.mcp && o.url == "" && o.htmlPath == "" {
		fmt.Fprintln(os.Stderr, "usage: cartfinder -url <url> [-watch] | -html <file> | -serve | -mcp")
		os.Exit(2)
	}

	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(o.configPath); err != nil {
			return err
		}
	}

	if o.mcp {
		dropStdoutSinks(logger, cfg)
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := cartfinder.New(cfg, cartfinder.WithStore(st), cartfinder.WithLogger(logger))
	if err != nil {
		return err
	}
	defer svc.Close()

	var kinds []string
	if o.kinds != "" {
		kinds = strings.Split(o.kinds, ",")
	}

	switch {
	case o.serve:
		return serveHTTP(ctx, logger, svc, cfg.Listen)
	case o.mcp:
		return serveMCP(ctx, svc)
	case o.watch:
		return watch(ctx, logger, svc, o.url, kinds)
	}

	req := cartfinder.ScanRequest{URL: o.url, Mode: o.mode, Kinds: kinds}
	if o.htmlPath != "" {
		data, err := os.ReadFile(o.htmlPath)
		if err != nil {
			return fmt.Errorf("read html: %w", err)
		}
		req.HTML = string(data)
	}
	rep, err := svc.Scan(ctx, req)
	if err != nil {
		return err
	}
	return printReport(rep)
}

// dropStdoutSinks removes stdout sinks, whose writes would interleave
// with the MCP protocol stream on stdio.
func dropStdoutSinks(logger *slog.Logger, cfg *config.Config) {
	kept := cfg.Sinks[:0]
	for _, sc := range cfg.Sinks {
		if sc.Type == "stdout" {
			logger.Warn("cartfinder: stdout sink disabled in mcp mode")
			continue
		}
		kept = append(kept, sc)
	}
	cfg.Sinks = kept
}

func serveHTTP(ctx context.Context, logger *slog.Logger, svc *cartfinder.Service, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           svc.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("cartfinder: http listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("cartfinder: stopped")
	return nil
}

func serveMCP(ctx context.Context, svc *cartfinder.Service) error {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "cartfinder",
		Version: "1.0.0",
	}, nil)
	svc.RegisterMCP(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func watch(ctx context.Context, logger *slog.Logger, svc *cartfinder.Service, url string, kinds []string) error {
	if url == "" {
		return errors.New("-watch needs -url")
	}
	parsed, err := cartfinder.ParseKinds(kinds)
	if err != nil {
		return err
	}
	err = svc.Watch(ctx, url, parsed, func(rep *report.Report) {
		if err := printReport(rep); err != nil {
			logger.Warn("cartfinder: print report", "error", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printReport(rep *report.Report) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
