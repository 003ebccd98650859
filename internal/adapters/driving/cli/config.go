package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/onenote-explorer/internal/connectors/microsoft"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	RunE:  runConfigInit,
}

// Flags for config init.
var (
	configClientID string
	configForce    bool
)

func init() {
	configInitCmd.Flags().StringVar(&configClientID, "client-id", "", "Application (client) ID of your app registration")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settings == nil || configStore == nil {
		return errors.New("configuration not loaded")
	}

	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	cmd.Println(paint(cmd.OutOrStdout(), dimStyle, "# "+configStore.Path()))
	cmd.Print(string(data))
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if settings == nil || configStore == nil {
		return errors.New("configuration not loaded")
	}

	if _, err := os.Stat(configStore.Path()); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configStore.Path())
	}

	cfg := *settings
	if configClientID != "" {
		cfg.Auth.ClientID = configClientID
	}
	if err := configStore.Save(&cfg); err != nil {
		return err
	}

	cmd.Printf("Wrote %s\n", configStore.Path())
	if cfg.Auth.ClientID == "" {
		cmd.Println("Set auth.client_id before signing in.")
		cmd.Println(microsoft.NewOAuthHandler().SetupHint() + ".")
	}
	return nil
}
