package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or clear the active repository",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active repository after revalidating it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		d, err := openDeps(ctx)
		if err != nil {
			return err
		}
		defer d.close()

		st, err := d.gate.Settled(ctx)
		if err != nil {
			return err
		}
		if st.Identity.IsZero() {
			fmt.Println("No repository selected.")
			return nil
		}
		repo, err := d.client.GetRepo(ctx, string(st.Identity))
		if err != nil {
			return fmt.Errorf("Failed to fetch repo info: %w", err)
		}
		fmt.Printf("Active repository: %s\n", st.Identity)
		fmt.Printf("  Name: %s\n", repo.DisplayName())
		fmt.Printf("  URL: %s\n", repo.RepoURL)
		if repo.Description != "" {
			fmt.Printf("  Description: %s\n", repo.Description)
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the active repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		d, err := openDeps(ctx)
		if err != nil {
			return err
		}
		defer d.close()

		if err := d.gate.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("Session cleared.")
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}
