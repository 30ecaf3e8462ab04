package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that every backend is reachable",
	Long: `Probes the embedder, vector store and language model. Exits with an
error when any of them is unavailable.`,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, err := loadServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	h := svc.Health.Check(ctx)

	if healthJSON {
		data, err := json.MarshalIndent(h, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal health: %w", err)
		}
		cmd.Println(string(data))
	} else {
		cmd.Printf("Status:    %s\n", h.Status)
		cmd.Printf("Embedder:  %s (%s)\n", h.Embedder, svc.Config.EmbedderBackend)
		cmd.Printf("Vector DB: %s (%s)\n", h.VectorDB, svc.Config.VectorDBBackend)
		cmd.Printf("LLM:       %s (%s)\n", h.LLM, svc.Config.LLMBackend)
	}

	if !h.OK() {
		return errors.New("one or more backends are unavailable")
	}
	return nil
}
