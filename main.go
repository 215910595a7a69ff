package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	mcp_golang "github.com/metoro-io/mcp-golang"
	"github.com/metoro-io/mcp-golang/transport"
	mcphttp "github.com/metoro-io/mcp-golang/transport/http"
	"github.com/metoro-io/mcp-golang/transport/stdio"
	"github.com/spf13/cobra"

	"ssh-hub/internal/conn"
	"ssh-hub/internal/policy"
	"ssh-hub/internal/store"
	"ssh-hub/internal/tools"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		transportKind string
		addr          string
		configPath    string
		policyPath    string
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:          "ssh-hub",
		Short:        "MCP server exposing SSH remote execution backed by a persisted server registry",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(transportKind, addr, configPath, policyPath, verbose)
		},
	}

	cmd.Flags().StringVar(&transportKind, "transport", "stdio", "MCP transport: stdio or http")
	cmd.Flags().StringVar(&addr, "addr", ":8081", "listen address for the http transport")
	cmd.Flags().StringVar(&configPath, "config", "", "path to the server store (default: user config dir)")
	cmd.Flags().StringVar(&policyPath, "policy", "", "optional YAML policy file restricting hosts and commands")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func run(transportKind, addr, configPath, policyPath string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	// Logs go to stderr so the stdio transport keeps stdout to itself.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if configPath == "" {
		p, err := store.DefaultPath()
		if err != nil {
			return fmt.Errorf("resolve default store path: %w", err)
		}
		configPath = p
	}
	st := store.Open(configPath)

	policyCfg, err := policy.LoadConfig(policyPath)
	if err != nil {
		return err
	}
	guard := policy.NewGuard(policyCfg)
	guard.StartCleanupRoutine(5*time.Minute, 30*time.Minute)

	manager := conn.NewManager(st)

	var t transport.Transport
	switch transportKind {
	case "http":
		t = mcphttp.NewHTTPTransport("/mcp").WithAddr(addr)
	case "stdio":
		t = stdio.NewStdioServerTransport()
	default:
		return fmt.Errorf("unknown transport %q (want stdio or http)", transportKind)
	}

	server := mcp_golang.NewServer(
		t,
		mcp_golang.WithName("ssh-hub"),
		mcp_golang.WithInstructions("Run commands on configured SSH servers"),
		mcp_golang.WithVersion(version),
	)

	if err := tools.NewHandlers(st, manager, guard).Register(server); err != nil {
		return err
	}

	slog.Info("starting ssh-hub", "transport", transportKind, "store", configPath)
	defer manager.Disconnect("")
	return server.Serve()
}
