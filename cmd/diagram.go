package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/devcompass/internal/diagrams"
	"github.com/ziadkadry99/devcompass/internal/viewport"
)

var (
	diagramOutput string
	diagramRaw    bool
)

var diagramCmd = &cobra.Command{
	Use:   "diagram [id]",
	Short: "Render the file structure diagram of a repository",
	Long: `Fetches the Mermaid file structure diagram of a repository (the active one
by default) and renders it to SVG with the configured renderer. With --raw,
prints the Mermaid script instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiagram,
}

func init() {
	diagramCmd.Flags().StringVarP(&diagramOutput, "output", "o", "diagram.svg", "SVG output path")
	diagramCmd.Flags().BoolVar(&diagramRaw, "raw", false, "print the Mermaid script instead of rendering")
	rootCmd.AddCommand(diagramCmd)
}

func runDiagram(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	id := ""
	if len(args) == 1 {
		id = args[0]
	} else {
		st, err := d.gate.Settled(ctx)
		if err != nil {
			return err
		}
		if !st.Valid {
			return errors.New("No repository selected.")
		}
		id = string(st.Identity)
	}

	graph, err := d.client.Diagram(ctx, id)
	if err != nil {
		return fmt.Errorf("Failed to fetch diagram: %w", err)
	}
	script, err := diagrams.Prepare(graph)
	if err != nil {
		return err
	}
	if diagramRaw {
		fmt.Println(script)
		return nil
	}

	quietLogs()
	out, err := diagrams.RenderScript(ctx, diagrams.MermaidCLI{Command: d.cfg.Renderer}, script)
	if err != nil {
		return fmt.Errorf("rendering diagram: %w", err)
	}
	svg, err := viewport.ParseSVG(out)
	if err != nil {
		return fmt.Errorf("parsing rendered diagram: %w", err)
	}
	svg.StripSizing()
	svg.FillContainer()
	if err := os.WriteFile(diagramOutput, svg.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", diagramOutput, err)
	}
	fmt.Printf("Diagram written to %s\n", diagramOutput)
	return nil
}
