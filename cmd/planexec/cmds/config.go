package cmds

import (
	"github.com/go-go-golems/planexec/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(newPrintConfigCommand())
	return cmd
}

func newPrintConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			showSecrets, _ := cmd.Flags().GetBool("show-secrets")
			if !showSecrets {
				cfg = redacted(cfg)
			}

			if used := viper.ConfigFileUsed(); used != "" {
				cmd.Printf("# %s\n", used)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer func() { _ = enc.Close() }()
			return enc.Encode(cfg)
		},
	}
	cmd.Flags().Bool("show-secrets", false, "Print API keys in clear")
	return cmd
}

func redacted(cfg *config.Config) *config.Config {
	ret := *cfg
	if ret.AI.APIKey != "" {
		ret.AI.APIKey = "***"
	}
	if ret.Search.APIKey != "" {
		ret.Search.APIKey = "***"
	}
	return &ret
}
