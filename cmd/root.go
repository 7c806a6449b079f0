package cmd

import "github.com/spf13/cobra"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "devcompass",
	Short: "Explore analyzed GitHub repositories from the terminal or the browser",
	Long: `DevCompass submits GitHub repositories to the analysis backend, tracks
ingestion until the repository is ready and then serves its dashboard,
chat, file structure diagram and audio overview. The same operations are
available as CLI commands and as MCP tools for AI agents.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".devcompass.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
