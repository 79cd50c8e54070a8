package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfg *viper.Viper

func initConfig() error {
	cfg = viper.New()
	cfg.SetConfigName(".formbot")
	cfg.SetConfigType("yaml")

	home, err := os.UserHomeDir()
	if err == nil {
		cfg.AddConfigPath(home)
	}

	cfg.SetDefault("url", "http://localhost:8080")
	cfg.SetDefault("api_key", "")

	cfg.SetEnvPrefix("FORMBOT")
	cfg.AutomaticEnv()

	// Read config file (ignore if not found)
	cfg.ReadInConfig()

	// CLI flags take highest priority
	if flagURL != "" {
		cfg.Set("url", flagURL)
	}
	if flagKey != "" {
		cfg.Set("api_key", flagKey)
	}

	return nil
}

func getConfigURL() string {
	return strings.TrimRight(cfg.GetString("url"), "/")
}

func getConfigKey() string {
	return cfg.GetString("api_key")
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a config file template at ~/.formbot.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}

			configPath := filepath.Join(home, ".formbot.yaml")

			if _, err := os.Stat(configPath); err == nil {
				printMessage("Config file already exists at " + configPath)
				return nil
			}

			template := `# Formbot CLI configuration
url: http://localhost:8080
api_key: ""
`
			if err := os.WriteFile(configPath, []byte(template), 0600); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			printMessage("Config file created at " + configPath)
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := getConfigURL()
			apiKey := getConfigKey()

			masked := "(not set)"
			if apiKey != "" {
				if len(apiKey) > 8 {
					masked = apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
				} else {
					masked = "****"
				}
			}

			cfgFile := cfg.ConfigFileUsed()
			if cfgFile == "" {
				cfgFile = "(none)"
			}

			printDetails([]detailRow{
				{"URL", url},
				{"API key", masked},
				{"Config file", cfgFile},
			})

			return nil
		},
	}
}
