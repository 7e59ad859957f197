package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yllada/vpn-settings/common"
	"github.com/yllada/vpn-settings/properties"
	"github.com/yllada/vpn-settings/vpn"
)

var createOpts struct {
	name    string
	host    string
	typ     string
	domain  string
	profile string
	set     []string
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a VPN connection",
	Long: `Create a VPN connection in connman.

Provider settings are given as dotted assignments, for example
--set OpenVPN.Port=1194. With --from, an OpenVPN profile is imported first
and the other flags override what it contains.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, ok := common.ParseConnectionType(createOpts.typ)
		if !ok {
			return fmt.Errorf("%w: %s", common.ErrUnsupportedType, createOpts.typ)
		}
		overrides, err := parseAssignments(createOpts.set)
		if err != nil {
			return err
		}

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		props := properties.Map{}
		if createOpts.profile != "" {
			imported := s.model.ImportProvisioningFile(createOpts.profile, typ)
			if len(imported) == 0 {
				return fmt.Errorf("nothing imported from %s", createOpts.profile)
			}
			merge(props, properties.ToPresentation(imported))
		}
		props[properties.KeyType] = properties.Number(int64(typ))
		if createOpts.name != "" {
			props[properties.KeyName] = properties.String(createOpts.name)
		}
		if createOpts.host != "" {
			props[properties.KeyHost] = properties.String(createOpts.host)
		}
		if createOpts.domain != "" {
			props[properties.KeyDomain] = properties.String(createOpts.domain)
		}
		merge(props, overrides)

		name := props.Str(properties.KeyName)
		if err := s.model.Create(props); err != nil {
			return err
		}

		err = waitUntil(cmd.Context(), s.model, common.ConnectionTimeout, func() bool {
			_, ok := s.model.Lookup(name)
			return ok
		})
		if err != nil {
			return fmt.Errorf("connection %s was not created, see the log for details", name)
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Created "+name))
		return nil
	},
}

var modifyOpts struct {
	name string
	host string
	set  []string
}

var modifyCmd = &cobra.Command{
	Use:   "modify NAME|PATH",
	Short: "Change the settings of a VPN connection",
	Long: `Change the settings of a VPN connection.

connman cannot edit a connection in place, so it is removed and created
again with the new settings. Its object path may change.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		changes, err := parseAssignments(modifyOpts.set)
		if err != nil {
			return err
		}
		if modifyOpts.name != "" {
			changes[properties.KeyName] = properties.String(modifyOpts.name)
		}
		if modifyOpts.host != "" {
			changes[properties.KeyHost] = properties.String(modifyOpts.host)
		}
		if len(changes) == 0 {
			return fmt.Errorf("nothing to change")
		}

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		rec, err := s.find(args[0])
		if err != nil {
			return err
		}
		if rec.Immutable {
			return fmt.Errorf("%s is provisioned by the system and cannot be modified", rec.Name)
		}

		settings := s.model.Settings(rec.Path)
		merge(settings, changes)
		if err := s.model.Modify(rec.Path, settings); err != nil {
			return err
		}
		if err := s.model.WaitIdle(cmd.Context()); err != nil {
			return err
		}

		name := settings.Str(properties.KeyName)
		err = waitUntil(cmd.Context(), s.model, common.ConnectionTimeout, func() bool {
			_, ok := s.model.Lookup(name)
			return ok
		})
		if err != nil {
			return fmt.Errorf("connection %s was not recreated, see the log for details", name)
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Modified "+name))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete NAME|PATH",
	Aliases: []string{"rm"},
	Short:   "Delete a VPN connection",
	Args:    cobra.ExactArgs(1),
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
		if err := s.model.Delete(rec.Path); err != nil {
			return err
		}

		err = waitUntil(cmd.Context(), s.model, common.ConnectionTimeout, func() bool {
			_, ok := s.model.Connection(rec.Path)
			return !ok
		})
		if err != nil {
			return fmt.Errorf("connection %s was not deleted: %w", rec.Name, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Deleted "+rec.Name))
		return nil
	},
}

var autoCmd = &cobra.Command{
	Use:       "auto NAME|PATH [on|off]",
	Short:     "Show or change automatic connection",
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"on", "off"},
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

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			fmt.Fprintf(out, "%s: automatic connection %s\n", rec.Name, onOff(s.model.Automatic(rec.Path)))
			return nil
		}

		var enabled bool
		switch args[1] {
		case "on", "true", "yes":
			enabled = true
		case "off", "false", "no":
		default:
			return fmt.Errorf("invalid value %q, want on or off", args[1])
		}
		if err := s.model.SetAutomatic(rec.Path, enabled); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: automatic connection %s\n", rec.Name, onOff(s.model.Automatic(rec.Path)))
		return nil
	},
}

func onOff(b bool) string {
	if b {
		return successStyle.Render("on")
	}
	return mutedStyle.Render("off")
}

func init() {
	f := createCmd.Flags()
	f.StringVar(&createOpts.name, "name", "", "connection name")
	f.StringVar(&createOpts.host, "host", "", "VPN server host")
	f.StringVar(&createOpts.typ, "type", vpn.TypeOpenVPN.String(), "connection type: openvpn, openconnect, vpnc, l2tp, pptp")
	f.StringVar(&createOpts.domain, "domain", "", "connman domain")
	f.StringVar(&createOpts.profile, "from", "", "import settings from an OpenVPN profile")
	f.StringArrayVar(&createOpts.set, "set", nil, "extra property as key=value (repeatable)")

	f = modifyCmd.Flags()
	f.StringVar(&modifyOpts.name, "name", "", "new connection name")
	f.StringVar(&modifyOpts.host, "host", "", "new VPN server host")
	f.StringArrayVar(&modifyOpts.set, "set", nil, "property as key=value (repeatable)")

	rootCmd.AddCommand(createCmd, modifyCmd, deleteCmd, autoCmd)
}
