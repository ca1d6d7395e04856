// Package cli provides the oracle command line: the relay server, a
// terminal chat client and build info.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/varsilias/oracle-chat/internal/buildinfo"
	"github.com/varsilias/oracle-chat/internal/config"
)

var (
	// Global flags
	cfgFile string

	// Loaded before any command that needs it
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Lore-grounded D&D chat relay",
	Long: `Oracle answers questions about a campaign setting using a live Google Doc
as its only lore source. It relays replies from the model as server-sent
events to a browser page or to the terminal chat client.`,
	Version:      buildinfo.Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("ORACLE_CONFIG"), "path to a YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(versionCmd)
}
