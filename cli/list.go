package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List VPN connections",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		records := s.model.Connections()
		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, "No VPN connections configured.")
			fmt.Fprintln(out, mutedStyle.Render("Use 'vpn-settings create' to add one."))
			return nil
		}
		renderConnections(out, records)

		best := s.model.BestState()
		fmt.Fprintf(out, "\nOverall: %s\n", stateStyle(best).Render(best.String()))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show NAME|PATH",
	Short: "Show the settings of a VPN connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		rec, err := s.find(args[0])
		if err != nil {
			return err
		}
		return writeYAML(cmd.OutOrStdout(), s.model.Settings(rec.Path).Plain())
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
}
