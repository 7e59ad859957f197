package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	revealSecrets bool
	promptKeys    []string
)

var credentialsCmd = &cobra.Command{
	Use:     "credentials",
	Aliases: []string{"creds"},
	Short:   "Manage stored VPN credentials",
}

var credentialsShowCmd = &cobra.Command{
	Use:   "show NAME|PATH",
	Short: "Show stored credentials",
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

		out := cmd.OutOrStdout()
		if !s.model.CredentialsEnabled(rec.Path) {
			fmt.Fprintf(out, "%s: credential storage disabled\n", rec.Name)
			return nil
		}

		creds := s.model.Credentials(rec.Path)
		if !revealSecrets {
			creds = maskSecrets(creds)
		}
		return writeYAML(out, creds)
	},
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set NAME|PATH [KEY=VALUE...]",
	Short: "Store credentials and enable credential storage",
	Long: `Store credentials for a connection and enable credential storage.

Values given with --prompt are read from the terminal without echo, for
example --prompt OpenVPN.Password. The stored set replaces the previous one.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		creds := make(map[string]string)
		for _, arg := range args[1:] {
			key, value, ok := strings.Cut(arg, "=")
			if !ok || key == "" {
				return fmt.Errorf("invalid assignment %q, want key=value", arg)
			}
			creds[key] = value
		}
		for _, key := range promptKeys {
			value, err := readSecret(key)
			if err != nil {
				return err
			}
			creds[key] = value
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
		if err := s.model.SetCredentials(rec.Path, creds); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Stored %d credential(s) for %s", len(creds), rec.Name)))
		return nil
	},
}

var credentialsDisableCmd = &cobra.Command{
	Use:   "disable NAME|PATH",
	Short: "Delete stored credentials and disable credential storage",
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
		if err := s.model.DisableCredentials(rec.Path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: credential storage disabled\n", rec.Name)
		return nil
	},
}

func readSecret(key string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for %s: stdin is not a terminal", key)
	}
	fmt.Fprintf(os.Stderr, "%s: ", key)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(secret), nil
}

// maskSecrets hides the values of password-like keys.
func maskSecrets(creds map[string]string) map[string]string {
	out := make(map[string]string, len(creds))
	for k, v := range creds {
		lower := strings.ToLower(k)
		if strings.Contains(lower, "password") || strings.Contains(lower, "secret") {
			v = "********"
		}
		out[k] = v
	}
	return out
}

func init() {
	credentialsShowCmd.Flags().BoolVar(&revealSecrets, "reveal", false, "print secrets in clear text")
	credentialsSetCmd.Flags().StringArrayVar(&promptKeys, "prompt", nil, "prompt for the value of KEY without echo (repeatable)")

	credentialsCmd.AddCommand(credentialsShowCmd, credentialsSetCmd, credentialsDisableCmd)
	rootCmd.AddCommand(credentialsCmd)
}
