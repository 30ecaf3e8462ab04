package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/context-search/internal/adapters/driving/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP query API",
	Long: `Starts the HTTP API:

  POST /api/query   {"query": "...", "stream": false}
  GET  /api/health

Streamed answers are newline-delimited JSON. API_RATE_LIMIT limits queries
per client per minute, and ASSISTANT_ENABLED=false rejects every query.

Examples:
  context-search serve
  context-search serve --addr :9000`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "address to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return fmt.Errorf("getting addr flag: %w", err)
	}

	ctx := cmd.Context()
	svc, err := loadServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	server, err := httpapi.NewServer(&httpapi.Ports{
		Query:  svc.Query,
		Health: svc.Health,
	}, httpapi.Options{
		AssistantDisabled: !svc.Config.AssistantEnabled,
		RateLimit:         svc.Config.APIRateLimit,
	})
	if err != nil {
		return err
	}

	if err := server.Start(addr); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", server.Addr())

	<-ctx.Done()
	return server.Shutdown(context.WithoutCancel(ctx))
}
