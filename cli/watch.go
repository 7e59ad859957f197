package cli

import (
	"github.com/spf13/cobra"
	"github.com/yllada/vpn-settings/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a live view of VPN connections",
	Long: `Show a live view of VPN connections.

Keys: enter connects or disconnects the selected connection, a toggles
automatic connection, q quits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		quietConsole = true
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		return ui.Run(cmd.Context(), s.model)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
