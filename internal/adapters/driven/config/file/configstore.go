package file

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// maskedValue replaces secrets in rendered configuration.
const maskedValue = "********"

// ConfigStore reads pipeline configuration from a TOML or YAML file.
// The format is chosen by extension: .toml, .yaml or .yml.
type ConfigStore struct {
	filePath string
	explicit bool
}

// NewConfigStore creates a config store for path.
// If path is empty, defaults to ~/.context-search/config.toml, which may be
// absent. An explicit path must exist.
func NewConfigStore(path string) (*ConfigStore, error) {
	if path != "" {
		return &ConfigStore{filePath: path, explicit: true}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	return &ConfigStore{filePath: filepath.Join(home, ".context-search", "config.toml")}, nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// Load reads the file and resolves it against domain.DefaultConfig.
// Unknown keys fail with domain.ErrInvalidConfiguration.
func (s *ConfigStore) Load() (domain.Config, error) {
	overrides, err := s.LoadOverrides()
	if err != nil {
		return domain.Config{}, err
	}
	return domain.Resolve(domain.DefaultConfig(), overrides)
}

// LoadOverrides reads the file without resolving it. A missing default
// file yields empty overrides.
func (s *ConfigStore) LoadOverrides() (domain.Overrides, error) {
	var o domain.Overrides

	data, err := os.ReadFile(s.filePath)
	if errors.Is(err, fs.ErrNotExist) && !s.explicit {
		return o, nil
	}
	if err != nil {
		return o, fmt.Errorf("reading config: %w", err)
	}

	if err := decode(s.filePath, data, &o); err != nil {
		return o, fmt.Errorf("%w: %s: %w", domain.ErrInvalidConfiguration, s.filePath, err)
	}
	return o, nil
}

func decode(path string, data []byte, o *domain.Overrides) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(o)

	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err := dec.Decode(o)
		if errors.Is(err, io.EOF) {
			return nil // empty document
		}
		return err

	default:
		return fmt.Errorf("unsupported config format %q (use .toml, .yaml or .yml)", filepath.Ext(path))
	}
}

// Render encodes a resolved configuration as TOML with API keys masked.
func Render(cfg domain.Config) ([]byte, error) {
	backends := make(map[string]map[string]any, len(cfg.Backends))
	for name := range cfg.Backends {
		settings := cfg.BackendSettings(name)
		for key, value := range settings {
			if s, ok := value.(string); ok && s != "" && isSecret(key) {
				settings[key] = maskedValue
			}
		}
		backends[name] = settings
	}

	pageTypes := cfg.PageTypes
	if pageTypes == nil {
		pageTypes = []string{}
	}

	o := domain.Overrides{
		LLMBackend:         &cfg.LLMBackend,
		LLMModel:           &cfg.LLMModel,
		LLMTemperature:     &cfg.LLMTemperature,
		LLMMaxTokens:       &cfg.LLMMaxTokens,
		EmbedderBackend:    &cfg.EmbedderBackend,
		EmbedderModel:      &cfg.EmbedderModel,
		EmbeddingDimension: &cfg.EmbeddingDimension,
		VectorDBBackend:    &cfg.VectorDBBackend,
		VectorDBCollection: &cfg.VectorDBCollection,
		TopK:               &cfg.TopK,
		ChunkSize:          &cfg.ChunkSize,
		ChunkOverlap:       &cfg.ChunkOverlap,
		PromptTemplate:     &cfg.PromptTemplate,
		SystemPrompt:       &cfg.SystemPrompt,
		SiteName:           &cfg.SiteName,
		PageTypes:          pageTypes,
		APIRateLimit:       &cfg.APIRateLimit,
		AssistantEnabled:   &cfg.AssistantEnabled,
		Backends:           backends,
	}
	return toml.Marshal(o)
}

func isSecret(key string) bool {
	return key == "api_key" || strings.HasSuffix(key, "_token") || strings.HasSuffix(key, "_secret")
}
