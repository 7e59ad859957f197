package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yllada/vpn-settings/common"
)

var importType string

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Convert a provisioning file into connman properties",
	Long: `Convert a provisioning file into connman connection properties.

Certificates and keys embedded in the profile are written next to the other
provisioning files and referenced by path. connman is not contacted; use
'create --from FILE' to create the connection.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, ok := common.ParseConnectionType(importType)
		if !ok {
			return fmt.Errorf("%w: %s", common.ErrUnsupportedType, importType)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer common.CloseLogger()

		imported := newModel(cfg, nil).ImportProvisioningFile(args[0], typ)
		if len(imported) == 0 {
			return fmt.Errorf("nothing imported from %s", args[0])
		}
		return writeYAML(cmd.OutOrStdout(), imported.Plain())
	},
}

func init() {
	importCmd.Flags().StringVar(&importType, "type", "openvpn", "provisioning file type")
	rootCmd.AddCommand(importCmd)
}
