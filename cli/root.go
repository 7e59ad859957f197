// Package cli implements the vpn-settings command line using cobra.
// Every command that talks to connman opens a session: it loads the
// configuration, starts a vpn.Model and waits for the first connection list.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yllada/vpn-settings/common"
)

// Build information, set by main from ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "vpn-settings",
	Short: "Manage connman VPN connections",
	Long: `vpn-settings lists and edits the VPN connections known to connman.

It also keeps the per-connection settings connman does not store itself:
automatic connection and saved credentials.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/vpn-settings/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.SetVersionTemplate(fmt.Sprintf("%s v%s (built: %s)\n", common.AppName, Version, BuildTime))
}

// Execute runs the root command until it finishes or the process receives
// SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		stop()
		os.Exit(1)
	}
}

// SetVersion updates the version and build time shown by --version.
func SetVersion(version, buildTime string) {
	Version = version
	BuildTime = buildTime
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("%s v%s (built: %s)\n", common.AppName, version, buildTime))
}
