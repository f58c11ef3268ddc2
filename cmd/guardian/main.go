// Command guardian intercepts chat submissions that may contain personal
// data and scans chat history for earlier leaks.
//
// The serve command runs the privileged side: the classifier client, the
// history-scan aggregator, the persisted report and settings, and the
// management API page scripts talk to. The other commands drive the same
// workflow from a terminal against saved page snapshots.
//
// Usage:
//
//	# Run the privileged side and management API
//	./guardian serve
//
//	# Replay a submission from a saved ChatGPT page
//	./guardian submit --page chat.html --url https://chat.openai.com/ --text "my email is a@b.com"
//
//	# Scan the user messages of a saved page
//	./guardian scan --page chat.html --url https://claude.ai/chat/1
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"privacy-guardian/internal/config"
	"privacy-guardian/internal/platform"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "guardian",
	Short: "Catch personal data before it reaches an AI chat.",
	Long: `guardian checks chat messages for personal data before they are sent,
offers an anonymized rewrite, and scans chat history for earlier leaks.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/"+config.DefaultFileName+")")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "loglevel", "l", "", "Set log level. Available: debug, info, warn, error")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig applies the persistent flags on top of the layered config.
func loadConfig() *config.Config {
	cfg := config.Load(cfgFile)
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg
}

func printBanner(cfg *config.Config) {
	token := "(none, set MANAGEMENT_TOKEN to require a bearer token)"
	if cfg.ManagementToken != "" {
		token = "(set)"
	}
	notifyTo := "log only"
	if cfg.NotifyWebhookURL != "" {
		notifyTo = cfg.NotifyWebhookURL
	}
	var domains []string
	for _, p := range platform.All() {
		domains = append(domains, p.Domain)
	}

	fmt.Printf(`
╔══════════════════════════════════════════════════════╗
║          Privacy Guardian                            ║
╚══════════════════════════════════════════════════════╝
  Management API  : %s:%d
  Auth token      : %s
  Classifier      : %s
  Store           : %s (%s)
  Notifications   : %s
  Platforms       : %s

  Check status:
    curl http://localhost:%d/status
`, cfg.BindAddress, cfg.ManagementPort,
		token,
		cfg.BackendURL,
		cfg.StoreBackend, cfg.StorePath,
		notifyTo,
		strings.Join(domains, ", "),
		cfg.ManagementPort)
}
