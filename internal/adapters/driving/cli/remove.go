package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/context-search/internal/connectors/filesystem"
	"github.com/custodia-labs/context-search/internal/core/domain"
)

var removeCmd = &cobra.Command{
	Use:   "remove [source-ref...]",
	Short: "Remove sources from the index",
	Long: `Deletes every chunk of the given sources. A source ref is the absolute
path of an indexed file; relative paths and file:// URLs are resolved.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, err := loadServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	var missing int
	for _, arg := range args {
		ref := filesystem.SourceRef(arg)
		err := svc.Index.RemoveSource(ctx, ref)
		if errors.Is(err, domain.ErrNotFound) {
			cmd.Printf("Not indexed: %s\n", ref)
			missing++
			continue
		}
		if err != nil {
			return fmt.Errorf("remove failed: %w", err)
		}
		cmd.Printf("Removed %s\n", ref)
	}

	if missing == len(args) {
		return fmt.Errorf("%w: none of the sources were indexed", domain.ErrNotFound)
	}
	return nil
}
