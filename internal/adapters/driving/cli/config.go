package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long: `Prints the configuration after defaults, the config file and environment
fallbacks are merged. API keys and tokens are masked.`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out, err := bootstrapper.RenderConfig(cfg)
	if err != nil {
		return fmt.Errorf("rendering config: %w", err)
	}
	cmd.Print(out)
	return nil
}
