package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/devcompass/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize devcompass configuration with an interactive wizard",
	Long:  `Runs an interactive wizard that asks for the backend URL, port and polling behaviour and writes a .devcompass.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.RunWizard(cfgFile)
		if err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s (backend %s)\n", cfgFile, cfg.APIURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
