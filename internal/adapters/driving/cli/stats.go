package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, err := loadServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	stats, err := svc.Retrieval.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}
	sources, err := svc.Index.Sources(ctx)
	if err != nil {
		return fmt.Errorf("listing sources: %w", err)
	}

	if statsJSON {
		data, err := json.MarshalIndent(map[string]any{
			"backend":        stats.Backend,
			"document_count": stats.DocumentCount,
			"source_count":   len(sources),
			"text_search":    svc.Retrieval.UsesTextSearch(),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	mode := "vector"
	if svc.Retrieval.UsesTextSearch() {
		mode = "text"
	}

	cmd.Printf("Backend:    %s\n", stats.Backend)
	cmd.Printf("Collection: %s\n", svc.Config.VectorDBCollection)
	cmd.Printf("Retrieval:  %s\n", mode)
	cmd.Printf("Chunks:     %d\n", stats.DocumentCount)
	cmd.Printf("Sources:    %d\n", len(sources))
	return nil
}
