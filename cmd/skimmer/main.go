package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/skimmer/internal/runner"
	"github.com/ajitpratap0/skimmer/pkg/config"
	"github.com/ajitpratap0/skimmer/pkg/logger"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "skimmer",
		Short: "Skimmer - incremental database-to-HTTP extraction agent",
		Long: `Skimmer pulls new rows from a relational database using per-source
watermarks and forwards them to an HTTP sink, with a durable on-disk
retry queue guaranteeing at-least-once delivery.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Skimmer v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var configFile string

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a configuration file without starting the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			fmt.Printf("Configuration OK: %d source(s), sink %s\n", len(cfg.Sources), cfg.Sink.APIURL)
			return nil
		},
	}
	checkCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Path to the agent configuration file")
	root.AddCommand(checkCmd)

	var metricsAddr string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the extraction agent until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(configFile, metricsAddr)
		},
	}
	runCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Path to the agent configuration file")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on (e.g. :9090), disabled when empty")
	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAgent(configFile, metricsAddr string) error {
	sup := runner.NewSupervisor(logger.Get())

	started, err := sup.Start(configFile)
	if err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}
	if !started {
		return fmt.Errorf("agent already running")
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Info("serving metrics", zap.String("addr", metricsAddr))
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	log.Info("shutting down", zap.String("signal", received.String()))

	sup.Stop()
	if status := sup.Status(); status.LastError != "" {
		return fmt.Errorf("agent exited with error: %s", status.LastError)
	}
	return nil
}
