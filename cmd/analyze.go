package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/devcompass/internal/job"
	"github.com/ziadkadry99/devcompass/internal/progress"
)

var (
	analyzeHistory bool
	analyzeNoOpen  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [repository]",
	Short: "Submit a repository for analysis and wait until it is ready",
	Long: `Submits a GitHub repository (URL or owner/name) to the analysis backend,
shows progress until processing finishes and makes the result the active
repository. With --history, lists recent submissions instead.`,
	Example: `  devcompass analyze microsoft/WSL
  devcompass analyze https://github.com/go-chi/chi
  devcompass analyze --history`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeHistory, "history", false, "list recent submissions")
	analyzeCmd.Flags().BoolVar(&analyzeNoOpen, "no-open", false, "do not make the result the active repository")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	if analyzeHistory {
		return printHistory(ctx, d.history)
	}
	if len(args) == 0 {
		return errors.New("a repository URL or owner/name is required")
	}

	quietLogs()
	reporter := progress.NewReporter()
	id, err := d.poller.Submit(ctx, args[0], reporter.Update)
	reporter.Finish()
	if err != nil {
		var je *job.Error
		if errors.As(err, &je) {
			return fmt.Errorf("%s", je.Message)
		}
		return err
	}

	if analyzeNoOpen {
		fmt.Printf("Repository ready: %s\n", id)
		return nil
	}
	if err := d.gate.Adopt(ctx, id); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	st, err := d.gate.Settled(ctx)
	if err != nil {
		return err
	}
	if !st.Valid {
		return fmt.Errorf("repository %s was processed but the backend does not know it", id)
	}
	fmt.Printf("Repository ready: %s (now active)\n", id)
	return nil
}

func printHistory(ctx context.Context, history *job.History) error {
	runs, err := history.List(ctx, 20)
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No submissions yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tREPO ID\tURL\tMESSAGE")
	for _, r := range runs {
		repoID := r.RepoID
		if repoID == "" {
			repoID = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status, repoID, r.RepoURL, r.Message)
	}
	return w.Flush()
}
