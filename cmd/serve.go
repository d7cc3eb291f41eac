package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmfenton/plotdesk/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the selection state and history to the browser UI",
	Long: `Start the HTTP server the browser front end talks to. It exposes the
selection cells and derived cells as JSON, plot begin/complete calls for
rendering components, history CRUD, and a websocket event feed at /events.

  plotdesk serve
  plotdesk serve --listen 0.0.0.0:8585 --user u1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		srv := server.New(deps)
		defer srv.Close()

		httpServer := &http.Server{
			Addr:              deps.Config.Listen,
			Handler:           srv.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- httpServer.ListenAndServe()
		}()

		if !deps.Config.Quiet {
			fmt.Printf("plotdesk listening on %s (db: %s)\n", deps.Config.Listen, deps.Store.Path())
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-stop:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
