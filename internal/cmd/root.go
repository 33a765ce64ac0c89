// Package cmd wires the jira-gen command line interface.
package cmd

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/khushiGit123/jira-gen/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "jira-gen",
	Short: "Turn business requirements into designs and Jira backlogs",
	Long: `jira-gen runs a three-stage analysis pipeline over a free-text business
requirement: a business analyst stage extracts structured requirements, an
architect stage produces a technical design with diagrams, and a project
manager stage plans a backlog of epics and stories, optionally synced to
Jira.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/jira-gen/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Credentials commonly live in a .env next to the working directory.
	_ = godotenv.Load()

	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/jira-gen")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("JIRAGEN")
	// Replace dots with underscores for nested keys in env vars
	// e.g., JIRAGEN_BACKEND_API_KEY for backend.api_key
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
