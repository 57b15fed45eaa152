package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/funnyzak/mockflow/internal/config"
	"github.com/funnyzak/mockflow/internal/server"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// cfg is loaded once per invocation by the root PersistentPreRunE
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "mockflow",
	Short: "Mock API endpoints with latency, variants and rate limits",
	Long: `MockFlow serves mock API endpoints over HTTP and simulates calls to them.

Each endpoint answers with its configured status and body, optional simulated
latency, switchable response variants and a fixed-window rate limit. Calls are
recorded in a short history, explained in plain language and can be compared
against a live API.
`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runServer,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock HTTP server (default)",
	RunE:  runServer,
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Show version information",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run:               showVersion,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Configuration file path")
	flags.String("env-file", "", "Load environment variables from this file (default .env when present)")
	flags.IntP("port", "p", 0, "Listen port")
	flags.String("base-url", "", "Public origin used in snippets and share links")
	flags.Int64("max-body-bytes", 0, "Maximum accepted request body size in bytes")
	flags.Bool("cors", false, "Send permissive CORS headers")
	flags.StringP("log-level", "l", "", "Log level (trace, debug, info, warn, error, fatal, panic)")
	flags.Bool("log-file-enable", false, "Enable file logging")
	flags.String("log-file-path", "", "Log file path")
	flags.StringP("output", "o", "", "Output mode (console, json)")
	flags.Bool("silence", false, "Do not print calls served by the mock server")
	flags.String("locale", "", "Locale of explanations and console output (en, zh-CN)")
	flags.String("storage-driver", "", "Storage driver (sqlite, memory)")
	flags.String("storage-path", "", "SQLite database path")
	flags.Int("history-limit", 0, "Number of calls kept in history")
	flags.String("ratelimit-backend", "", "Rate-limit window backend (memory, redis)")
	flags.String("redis-addr", "", "Redis address for the redis rate-limit backend")
	flags.String("live-base-url", "", "Origin of the real API used for live comparisons")
	flags.Int("live-timeout", 0, "Live request timeout in seconds")
	flags.Int("live-retries", 0, "Retries for failed live requests")

	// Admin API flags
	flags.Bool("web-enable", false, "Enable/disable the admin API")
	flags.String("web-admin-path", "", "Admin API path")
	flags.Bool("web-auth-enable", false, "Enable/disable admin API authentication")
	flags.String("web-auth-session-timeout", "", "Admin session timeout duration")
	flags.Bool("web-export-enable", false, "Enable/disable history export")
	flags.StringSlice("web-export-formats", []string{}, "Supported history export formats")

	bindFlags(rootCmd)

	rootCmd.AddCommand(serveCmd, versionCmd)
	rootCmd.AddCommand(newCallCmd(), newFetchCmd(), newEndpointsCmd(), newHistoryCmd(), newShareCmd(), newImportCmd())
}

func bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	bindings := map[string]string{
		"server.port":              "port",
		"server.base_url":          "base-url",
		"server.max_body_bytes":    "max-body-bytes",
		"server.cors":              "cors",
		"log.level":                "log-level",
		"log.file_logging.enable":  "log-file-enable",
		"log.file_logging.path":    "log-file-path",
		"output.mode":              "output",
		"output.silence":           "silence",
		"output.locale":            "locale",
		"storage.driver":           "storage-driver",
		"storage.path":             "storage-path",
		"storage.history_limit":    "history-limit",
		"ratelimit.backend":        "ratelimit-backend",
		"ratelimit.redis.addr":     "redis-addr",
		"live.base_url":            "live-base-url",
		"live.timeout":             "live-timeout",
		"live.max_retries":         "live-retries",
		"web.enable":               "web-enable",
		"web.admin_path":           "web-admin-path",
		"web.auth.enable":          "web-auth-enable",
		"web.auth.session_timeout": "web-auth-session-timeout",
		"web.export.enable":        "web-export-enable",
		"web.export.formats":       "web-export-formats",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// loadConfig reads the env file and the configuration, flags taking
// precedence over file values.
func loadConfig(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	configPath, _ := cmd.Flags().GetString("config")
	loaded, err := config.LoadConfig(configPath, viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// a port given on the command line moves the default base url with it
	if cmd.Flags().Changed("port") && !cmd.Flags().Changed("base-url") && !viper.InConfig("server.base_url") {
		loaded.Server.BaseURL = ""
	}

	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg = loaded
	return nil
}

func runServer(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(cfg, a.log, a.runner, a.store)
	printStartupBanner(cfg, a)
	return srv.Start()
}

func showVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("MockFlow version %s\n", version)
	fmt.Printf("Commit: %s\n", commit)
	fmt.Printf("Built: %s\n", buildDate)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
