package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/context-search/internal/connectors/filesystem"
	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/logger"
)

var (
	indexRebuild  bool
	indexWatch    bool
	indexPageType string
)

var indexCmd = &cobra.Command{
	Use:   "index [paths...]",
	Short: "Index text files",
	Long: `Chunks and indexes every visible text file under the given paths.
Re-indexing a file replaces its previous chunks.

With --watch the command keeps running: creating or writing a file indexes
it, removing or renaming a file removes it from the index.

Examples:
  context-search index ./docs
  context-search index --rebuild ./docs
  context-search index --watch --page-type blog ./posts`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "empty the index before indexing")
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "keep indexing changes until interrupted")
	indexCmd.Flags().StringVar(&indexPageType, "page-type", "", "page type for every file (default: file extension)")
	rootCmd.AddCommand(indexCmd)
}

// indexStats counts the outcome of a full sync.
type indexStats struct {
	indexed int
	skipped int
	failed  int
}

func runIndex(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !indexRebuild {
		return errors.New("at least one path is required")
	}
	if len(args) == 0 && indexWatch {
		return errors.New("--watch requires at least one path")
	}

	ctx := cmd.Context()
	svc, err := loadServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	if indexRebuild {
		if err := svc.Index.Rebuild(ctx); err != nil {
			return fmt.Errorf("rebuild failed: %w", err)
		}
		cmd.Println("Index cleared.")
	}

	var opts []filesystem.Option
	if indexPageType != "" {
		opts = append(opts, filesystem.WithPageType(indexPageType))
	}

	connectors := make([]*filesystem.Connector, len(args))
	var total indexStats
	for i, path := range args {
		connectors[i] = filesystem.New(path, opts...)
		stats, err := syncConnector(ctx, cmd, svc, connectors[i])
		if err != nil {
			return err
		}
		total.indexed += stats.indexed
		total.skipped += stats.skipped
		total.failed += stats.failed
	}
	defer func() {
		for _, c := range connectors {
			c.Close() //nolint:errcheck
		}
	}()

	if len(args) > 0 {
		cmd.Printf("Indexed %d sources (%d skipped, %d failed).\n", total.indexed, total.skipped, total.failed)
	}

	if indexWatch {
		cmd.Println("Watching for changes. Press Ctrl+C to stop.")
		return watchConnectors(ctx, cmd, svc, connectors)
	}

	if total.failed > 0 {
		return fmt.Errorf("%d sources failed to index", total.failed)
	}
	return nil
}

func syncConnector(
	ctx context.Context,
	cmd *cobra.Command,
	svc *Services,
	c *filesystem.Connector,
) (indexStats, error) {
	var stats indexStats

	docs, errs := c.FullSync(ctx)
	for doc := range docs {
		indexed, err := svc.Index.IndexSource(ctx, doc)
		switch {
		case err != nil:
			logger.Error("indexing %s: %v", doc.Ref, err)
			stats.failed++
		case !indexed:
			stats.skipped++
		default:
			logger.Debug("Indexed %s", doc.Ref)
			stats.indexed++
		}
	}
	for err := range errs {
		return stats, fmt.Errorf("reading %s: %w", c.Root(), err)
	}
	return stats, nil
}

// watchConnectors applies changes from every connector until ctx ends.
func watchConnectors(
	ctx context.Context,
	cmd *cobra.Command,
	svc *Services,
	connectors []*filesystem.Connector,
) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range connectors {
		changes, err := c.Watch(gctx)
		if err != nil {
			return fmt.Errorf("watching %s: %w", c.Root(), err)
		}
		g.Go(func() error {
			for change := range changes {
				applyChange(gctx, cmd, svc, change)
			}
			return nil
		})
	}
	return g.Wait()
}

func applyChange(ctx context.Context, cmd *cobra.Command, svc *Services, change filesystem.Change) {
	switch change.Type {
	case filesystem.ChangePublished:
		indexed, err := svc.Index.IndexSource(ctx, change.Document)
		if err != nil {
			logger.Error("indexing %s: %v", change.Ref, err)
			return
		}
		if indexed {
			cmd.Printf("Indexed %s\n", change.Ref)
		}
	case filesystem.ChangeUnpublished:
		err := svc.Index.RemoveSource(ctx, change.Ref)
		if errors.Is(err, domain.ErrNotFound) {
			return
		}
		if err != nil {
			logger.Error("removing %s: %v", change.Ref, err)
			return
		}
		cmd.Printf("Removed %s\n", change.Ref)
	}
}
