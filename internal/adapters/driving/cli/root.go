// Package cli provides the cobra command tree for context-search.
// Commands obtain their services from a Bootstrapper installed by main, so
// the package depends only on core ports.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driving"
	"github.com/custodia-labs/context-search/internal/logger"
)

// ErrNotConfigured is returned when a command runs before SetBootstrapper.
var ErrNotConfigured = errors.New("services not configured")

// Services bundles the core services a command needs.
type Services struct {
	Config    domain.Config
	Query     driving.QueryService
	Retrieval driving.RetrievalService
	Index     driving.IndexService
	Health    driving.HealthService

	// Close releases backend connections. May be nil.
	Close func() error
}

func (s *Services) close() {
	if s.Close == nil {
		return
	}
	if err := s.Close(); err != nil {
		logger.Warn("closing services: %v", err)
	}
}

// Bootstrapper loads configuration and wires services from it.
type Bootstrapper interface {
	// LoadConfig reads and validates configuration. An empty path selects
	// the default location.
	LoadConfig(path string) (domain.Config, error)

	// RenderConfig formats cfg for display with secrets masked.
	RenderConfig(cfg domain.Config) (string, error)

	// Build constructs services for cfg.
	Build(ctx context.Context, cfg domain.Config) (*Services, error)
}

var (
	version      = "dev"
	configPath   string
	verbose      bool
	bootstrapper Bootstrapper
)

var rootCmd = &cobra.Command{
	Use:   "context-search",
	Short: "Answer questions about your content",
	Long: `context-search indexes plain-text content and answers natural-language
questions about it. Relevant passages are retrieved from a vector store or
full-text index and passed to a language model, and every answer lists the
sources it was grounded on.

Backends for the embedder, vector store and language model are chosen in
~/.context-search/config.toml.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default ~/.context-search/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// SetBootstrapper installs the service factory used by every command.
func SetBootstrapper(b Bootstrapper) {
	bootstrapper = b
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() (domain.Config, error) {
	if bootstrapper == nil {
		return domain.Config{}, ErrNotConfigured
	}
	cfg, err := bootstrapper.LoadConfig(configPath)
	if err != nil {
		return domain.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// loadServices loads configuration and builds services. Callers must
// close the result.
func loadServices(ctx context.Context) (*Services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	svc, err := bootstrapper.Build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("building services: %w", err)
	}
	return svc, nil
}
