// Package main provides the vecstore CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orneryd/vecstore/pkg/config"
	"github.com/orneryd/vecstore/pkg/httpapi"
	"github.com/orneryd/vecstore/pkg/store"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vecstore",
		Short: "vecstore - in-memory vector database",
		Long: `vecstore is an in-memory vector database: fixed-dimension
embedding chunks grouped into libraries, predicate-filtered mutation,
and top-k cosine-similarity search via a pluggable index
(brute force or ball tree).`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vecstore v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the vecstore HTTP server",
		RunE:  runServe,
	}
	serveCmd.Flags().Int("port", 8080, "HTTP API port")
	rootCmd.AddCommand(serveCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty snapshot file",
		RunE:  runInit,
	}
	rootCmd.AddCommand(initCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Force a snapshot write and exit",
		RunE:  runSnapshot,
	}
	rootCmd.AddCommand(snapshotCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")

	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Printf("Starting vecstore v%s\n", version)
	fmt.Printf("  Snapshot path:     %s\n", cfg.SnapshotPath)
	fmt.Printf("  Snapshot interval: %s\n", cfg.SnapshotInterval)
	fmt.Printf("  Embedding dim:     %d\n", cfg.EmbeddingDim)
	fmt.Println()

	fmt.Println("Opening store...")
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	httpCfg := httpapi.DefaultConfig()
	httpCfg.Port = port

	apiServer, err := httpapi.New(st, httpCfg)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("starting http server: %w", err)
	}

	fmt.Println()
	fmt.Println("vecstore is ready")
	fmt.Printf("  HTTP API: http://localhost:%d\n", port)
	fmt.Printf("  Health:   http://localhost:%d/health\n", port)
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Stop(ctx); err != nil {
		return fmt.Errorf("stopping http server: %w", err)
	}

	if err := st.SaveSnapshot(); err != nil {
		fmt.Printf("final snapshot failed: %v\n", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := os.Stat(cfg.SnapshotPath); err == nil {
		return fmt.Errorf("snapshot already exists at %s", cfg.SnapshotPath)
	}

	fmt.Printf("Initializing empty snapshot at %s\n", cfg.SnapshotPath)

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if err := st.SaveSnapshot(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	fmt.Println("Snapshot initialized")
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if err := st.SaveSnapshot(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	fmt.Printf("Snapshot written to %s\n", cfg.SnapshotPath)
	return nil
}
