package backends

import (
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// valueKind is the accepted type of a backend option.
type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindInt
)

func (k valueKind) String() string {
	switch k {
	case kindBool:
		return "boolean"
	case kindInt:
		return "integer"
	default:
		return "string"
	}
}

// option describes one key of a backend's settings.
type option struct {
	kind     valueKind
	required bool
	// env is consulted when the value is empty.
	env string
}

// Roles a backend can fill.
const (
	roleLLM      = "LLM_BACKEND"
	roleEmbedder = "EMBEDDER_BACKEND"
	roleVectorDB = "VECTOR_DB_BACKEND"
)

// schemas lists the options each backend accepts.
var schemas = map[string]map[string]option{
	domain.BackendOpenAI: {
		"api_key":  {kind: kindString, required: true, env: "OPENAI_API_KEY"},
		"base_url": {kind: kindString},
		"timeout":  {kind: kindInt},
	},
	domain.BackendAnthropic: {
		"api_key":  {kind: kindString, required: true, env: "ANTHROPIC_API_KEY"},
		"base_url": {kind: kindString},
		"timeout":  {kind: kindInt},
	},
	domain.BackendOllama: {
		"base_url":    {kind: kindString},
		"model":       {kind: kindString},
		"timeout":     {kind: kindInt},
		"concurrency": {kind: kindInt},
	},
	domain.BackendHashing: {
		"stopwords": {kind: kindBool},
	},
	domain.BackendMemory: {},
	domain.BackendSQLite: {
		"path": {kind: kindString},
	},
	domain.BackendSQLiteFTS: {
		"path":             {kind: kindString},
		"store_embeddings": {kind: kindBool},
	},
	domain.BackendQdrant: {
		"url":     {kind: kindString},
		"api_key": {kind: kindString, env: "QDRANT_API_KEY"},
		"timeout": {kind: kindInt},
	},
	domain.BackendMeilisearch: {
		"url":              {kind: kindString},
		"api_key":          {kind: kindString, env: "MEILISEARCH_API_KEY"},
		"store_embeddings": {kind: kindBool},
		"timeout":          {kind: kindInt},
	},
	domain.BackendPGVector: {
		"connection_string": {kind: kindString, env: "DATABASE_URL"},
		"timeout":           {kind: kindInt},
	},
}

// roles lists the backends that can fill each role.
var roles = map[string][]string{
	roleLLM:      {domain.BackendOpenAI, domain.BackendAnthropic, domain.BackendOllama},
	roleEmbedder: {domain.BackendOpenAI, domain.BackendOllama, domain.BackendHashing},
	roleVectorDB: {
		domain.BackendMemory, domain.BackendSQLite, domain.BackendSQLiteFTS,
		domain.BackendQdrant, domain.BackendMeilisearch, domain.BackendPGVector,
	},
}

// Validate checks backend selection and every BACKEND_SETTINGS entry against
// its schema. Required options of the selected backends must be set, either
// in the configuration or through their environment variable.
func Validate(cfg domain.Config) error {
	selected := map[string]string{
		roleLLM:      cfg.LLMBackend,
		roleEmbedder: cfg.EmbedderBackend,
		roleVectorDB: cfg.VectorDBBackend,
	}
	for _, role := range []string{roleLLM, roleEmbedder, roleVectorDB} {
		if !slices.Contains(roles[role], selected[role]) {
			return fmt.Errorf("%w: unknown %s %q (supported: %v)",
				domain.ErrInvalidConfiguration, role, selected[role], roles[role])
		}
	}

	names := make([]string, 0, len(cfg.Backends))
	for name := range cfg.Backends {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		schema, ok := schemas[name]
		if !ok {
			return fmt.Errorf("%w: BACKEND_SETTINGS: unknown backend %q", domain.ErrInvalidConfiguration, name)
		}
		for key, value := range cfg.Backends[name] {
			opt, ok := schema[key]
			if !ok {
				return fmt.Errorf("%w: BACKEND_SETTINGS.%s: unknown option %q",
					domain.ErrInvalidConfiguration, name, key)
			}
			if !opt.accepts(value) {
				return fmt.Errorf("%w: BACKEND_SETTINGS.%s.%s must be of type %s, got %T",
					domain.ErrInvalidConfiguration, name, key, opt.kind, value)
			}
		}
	}

	for _, name := range []string{cfg.LLMBackend, cfg.EmbedderBackend, cfg.VectorDBBackend} {
		settings := Settings(cfg, name)
		for key, opt := range schemas[name] {
			if opt.required && stringValue(settings, key) == "" {
				hint := ""
				if opt.env != "" {
					hint = " (or set " + opt.env + ")"
				}
				return fmt.Errorf("%w: BACKEND_SETTINGS.%s.%s is required%s",
					domain.ErrInvalidConfiguration, name, key, hint)
			}
		}
	}
	return nil
}

// Settings returns a backend's options with environment fallbacks applied.
func Settings(cfg domain.Config, name string) map[string]any {
	settings := cfg.BackendSettings(name)
	for key, opt := range schemas[name] {
		if opt.env == "" || stringValue(settings, key) != "" {
			continue
		}
		if v := os.Getenv(opt.env); v != "" {
			settings[key] = v
		}
	}
	return settings
}

func (o option) accepts(v any) bool {
	switch o.kind {
	case kindBool:
		_, ok := v.(bool)
		return ok
	case kindInt:
		_, ok := intValue(v)
		return ok
	default:
		_, ok := v.(string)
		return ok
	}
}

func stringValue(settings map[string]any, key string) string {
	s, _ := settings[key].(string)
	return s
}

func boolValue(settings map[string]any, key string) bool {
	b, _ := settings[key].(bool)
	return b
}

// intValue accepts the integer types produced by the TOML and YAML decoders
// and integral floats from JSON.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}
