package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/devcompass/internal/audio"
	"github.com/ziadkadry99/devcompass/internal/diagrams"
	"github.com/ziadkadry99/devcompass/internal/frontend"
	"github.com/ziadkadry99/devcompass/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the DevCompass web front-end",
	Long: `Starts the web front-end: the repository picker with live job progress,
and the dashboard, chat, file tree and audio pages of the active repository.
Protected pages redirect to the picker until the active repository has been
confirmed by the backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d, err := openDeps(ctx)
		if err != nil {
			return err
		}
		defer d.close()

		port := d.cfg.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Port:      port,
			AllowAll:  d.cfg.AllowAllOrigins,
			Protected: d.cfg.Protected,
		}, d.db, d.gate)
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}

		front, err := frontend.New(frontend.Options{
			Client:       d.client,
			Gate:         d.gate,
			Poller:       d.poller,
			History:      d.history,
			Renderer:     diagrams.MermaidCLI{Command: d.cfg.Renderer},
			Speaker:      audio.Command{Name: d.cfg.TTSCommand},
			ZoomDuration: d.cfg.ZoomDuration(),
		})
		if err != nil {
			return fmt.Errorf("creating front-end: %w", err)
		}
		defer front.Close()
		front.RegisterRoutes(srv.Router())

		// Graceful shutdown.
		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		st := d.gate.Snapshot()
		fmt.Fprintf(os.Stderr, "devcompass v%s starting on port %d\n", Version, port)
		fmt.Fprintf(os.Stderr, "  Backend: %s\n", d.cfg.APIURL)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", d.cfg.DBPath())
		if !st.Identity.IsZero() {
			fmt.Fprintf(os.Stderr, "  Active repository: %s\n", st.Identity)
		}

		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
