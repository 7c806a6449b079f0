package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/devcompass/internal/api"
	"github.com/ziadkadry99/devcompass/internal/session"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage analyzed repositories",
	Long:  `List, open and delete repositories known to the analysis backend.`,
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analyzed repositories",
	RunE:  runRepoList,
}

var repoOpenCmd = &cobra.Command{
	Use:   "open [id]",
	Short: "Make a repository the active one",
	Long:  `Makes a repository the active one after the backend confirms it exists. Without an id, an interactive picker is shown.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRepoOpen,
}

var repoDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a repository from the backend",
	Args:  cobra.ExactArgs(1),
	RunE:  runRepoDelete,
}

func init() {
	repoCmd.AddCommand(repoListCmd)
	repoCmd.AddCommand(repoOpenCmd)
	repoCmd.AddCommand(repoDeleteCmd)
	rootCmd.AddCommand(repoCmd)
}

func runRepoList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	repos, err := d.client.ListRepos(ctx)
	if err != nil {
		return fmt.Errorf("listing repositories: %w", err)
	}
	if len(repos) == 0 {
		fmt.Println("No past repositories found.")
		return nil
	}

	active := d.gate.Identity()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tURL\tCOLLECTION\tCREATED")
	for _, r := range repos {
		marker := ""
		if session.Identity(r.ID) == active {
			marker = "*"
		}
		created := "-"
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", marker, r.ID, r.RepoURL, r.CollectionName, created)
	}
	return w.Flush()
}

func runRepoOpen(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	var id session.Identity
	if len(args) == 1 {
		id = session.Identity(strings.TrimSpace(args[0]))
	} else {
		repos, err := d.client.ListRepos(ctx)
		if err != nil {
			return fmt.Errorf("listing repositories: %w", err)
		}
		picked, err := pickRepo(repos)
		if err != nil {
			return err
		}
		id = session.Identity(picked.ID)
	}

	if err := d.gate.Adopt(ctx, id); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	st, err := d.gate.Settled(ctx)
	if err != nil {
		return err
	}
	if !st.Valid {
		return fmt.Errorf("repository %s is not available", id)
	}
	fmt.Printf("Active repository: %s\n", id)
	return nil
}

// pickRepo asks the user to choose one of repos.
func pickRepo(repos []api.RepoInfo) (*api.RepoInfo, error) {
	if len(repos) == 0 {
		return nil, errors.New("no past repositories found; run `devcompass analyze` first")
	}
	prompt := promptui.Select{
		Label: "Select a repository",
		Items: repos,
		Templates: &promptui.SelectTemplates{
			Active:   `▸ {{ .RepoURL | cyan }} ({{ .ID }})`,
			Inactive: `  {{ .RepoURL }} ({{ .ID }})`,
			Selected: `✔ {{ .RepoURL | green }}`,
		},
		Size: 10,
	}
	i, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("selecting repository: %w", err)
	}
	return &repos[i], nil
}

func runRepoDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	id := strings.TrimSpace(args[0])
	if err := d.client.DeleteRepo(ctx, id); err != nil {
		return fmt.Errorf("deleting repository %s: %w", id, err)
	}
	if d.gate.Identity() == session.Identity(id) {
		if err := d.gate.Clear(ctx); err != nil {
			return fmt.Errorf("clearing session: %w", err)
		}
		fmt.Fprintln(os.Stderr, "The active repository was deleted; no repository is selected now.")
	}
	fmt.Printf("Deleted repository %s\n", id)
	return nil
}
