package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/promexec/promexec/internal/export"
	"github.com/promexec/promexec/internal/log"
	"github.com/promexec/promexec/internal/model"
	"github.com/promexec/promexec/internal/server"

	"github.com/spf13/cobra"
)

var (
	userConfigPath string // default config directory for promexec on given OS
	configPath     string // actual config file used (if found)
	config         model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagHost           string // value of --host flag
	flagPort           int    // value of --port flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "promexec")
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is promexec.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	serveCmd.Flags().StringVar(&flagHost, "host", "", "host to bind to (overrides config)")
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "port to listen on (overrides config)")

	rootCmd.SilenceErrors = true

	// parse the config and set up logging before any command runs
	rootCmd.PersistentPreRunE = initExporter

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("promexec failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "promexec",
	Short:        "Aggregates script output into one Prometheus exposition stream",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve runs the HTTP exporter, executing the configured scripts on every scrape",
	RunE:  doServe,
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "scrape runs a single aggregation pass and prints it to stdout",
	RunE:  doScrape,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides the version of promexec",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("promexec: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:   %s\n", configPath)
		}
		fmt.Printf("promexec: %s\n", info.Main.Version)
		fmt.Printf("go:       %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:   %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:     %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:    %s\n", s.Value)
			}
		}
	},
}

func doScrape(cmd *cobra.Command, args []string) error {
	ctx := log.ContextAttrs(cmd.Context(),
		slog.String("cmd", "scrape"),
		slog.Int("pid", os.Getpid()),
	)

	aggregator := export.New(config, filepath.Dir(configPath))
	_, err := fmt.Fprint(os.Stdout, aggregator.Aggregate(ctx))
	return err
}

func doServe(cmd *cobra.Command, args []string) error {
	ctx := log.ContextAttrs(cmd.Context(),
		slog.String("cmd", "serve"),
		slog.Int("pid", os.Getpid()),
	)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagHost != "" {
		config.Host = flagHost
	}
	if flagPort != 0 {
		config.Port = flagPort
	}

	aggregator := export.New(config, filepath.Dir(configPath))
	srv := server.New(config.Addr(), aggregator.Aggregate)

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "listening", "addr", srv.Addr, "scripts", len(config.Scripts))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.InfoContext(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func initExporter(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("PROMEXEC_CONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{".", userConfigPath} {
			path := filepath.Join(d, "promexec.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	if configPath == "" {
		// An exporter without scripts still serves the no-scripts
		// sentinel, so a missing config is not fatal.
		config = model.Config{}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		config, err = model.LoadConfig(f)
		if err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return fmt.Errorf("resolving config path: %w", err)
		}
		configPath = abs
	}

	// --verbose has precedence over the config file
	if flagVerbose {
		config.Verbose = true
	}

	slog.SetDefault(log.New(os.Stderr, config.Verbose))

	if configPath == "" {
		slog.Warn("no config file found, serving empty script list")
	}
	slog.Debug("promexec start", "configPath", configPath)
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
