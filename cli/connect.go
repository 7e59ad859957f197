package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yllada/vpn-settings/common"
	"github.com/yllada/vpn-settings/vpn"
)

var noWait bool

var connectCmd = &cobra.Command{
	Use:   "connect NAME|PATH",
	Short: "Connect a VPN connection",
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
		if rec.State == vpn.StateReady {
			return fmt.Errorf("already connected to %s", rec.Name)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Connecting to %s...\n", rec.Name)
		activate := func() error { return s.model.Activate(rec.Path) }
		if noWait {
			return activate()
		}

		state, err := awaitState(cmd.Context(), s.model, rec.Path, common.ConnectionTimeout, activate, func(state vpn.ConnectionState) bool {
			return state == vpn.StateReady || state == vpn.StateFailure
		})
		if err != nil {
			return fmt.Errorf("connection did not complete: %w", err)
		}
		if state != vpn.StateReady {
			return fmt.Errorf("connection to %s failed", rec.Name)
		}
		fmt.Fprintln(out, successStyle.Render("✓ Connected to "+rec.Name))
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect [NAME|PATH]",
	Short: "Disconnect a VPN connection, or all active ones",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		var targets []vpn.Record
		if len(args) == 1 {
			rec, err := s.find(args[0])
			if err != nil {
				return err
			}
			targets = append(targets, rec)
		} else {
			for _, rec := range s.model.Connections() {
				if rec.State.Rank() > vpn.StateFailure.Rank() {
					targets = append(targets, rec)
				}
			}
		}

		out := cmd.OutOrStdout()
		if len(targets) == 0 {
			fmt.Fprintln(out, "No active connections.")
			return nil
		}

		for _, rec := range targets {
			fmt.Fprintf(out, "Disconnecting from %s...\n", rec.Name)
			if err := s.model.Deactivate(rec.Path); err != nil {
				fmt.Fprintf(out, "  Warning: %v\n", err)
				continue
			}
			if noWait {
				continue
			}
			err := waitUntil(cmd.Context(), s.model, common.ConnectionTimeout, func() bool {
				current, ok := s.model.Connection(rec.Path)
				return !ok || current.State.Rank() <= vpn.StateFailure.Rank()
			})
			if err != nil {
				fmt.Fprintf(out, "  Warning: %v\n", err)
				continue
			}
			fmt.Fprintln(out, successStyle.Render("  ✓ Disconnected"))
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{connectCmd, disconnectCmd} {
		cmd.Flags().BoolVar(&noWait, "no-wait", false, "return once the request is sent")
		rootCmd.AddCommand(cmd)
	}
}
