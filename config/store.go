package config

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/mediaflow/types"
)

// Settings holds one provider's configuration within a category.
type Settings struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"api_key"`
	Model   string   `yaml:"model"`
	Models  []string `yaml:"models"`

	// Consumer-site credentials.
	Cookie    string `yaml:"cookie"`
	CSRFToken string `yaml:"csrf_token"`
	StatsigID string `yaml:"statsig_id"`
	UserAgent string `yaml:"user_agent"`
	Origin    string `yaml:"origin"`

	Timeout time.Duration `yaml:"timeout"`
	MaxWait time.Duration `yaml:"max_wait"`

	// Extra carries provider-specific knobs that have no dedicated field.
	Extra map[string]string `yaml:"extra"`
}

// UnmarshalYAML decodes settings, accepting Go duration strings ("30s",
// "10m") for the timeout fields.
func (s *Settings) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		BaseURL   string            `yaml:"base_url"`
		APIKey    string            `yaml:"api_key"`
		Model     string            `yaml:"model"`
		Models    []string          `yaml:"models"`
		Cookie    string            `yaml:"cookie"`
		CSRFToken string            `yaml:"csrf_token"`
		StatsigID string            `yaml:"statsig_id"`
		UserAgent string            `yaml:"user_agent"`
		Origin    string            `yaml:"origin"`
		Timeout   string            `yaml:"timeout"`
		MaxWait   string            `yaml:"max_wait"`
		Extra     map[string]string `yaml:"extra"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	*s = Settings{
		BaseURL:   aux.BaseURL,
		APIKey:    aux.APIKey,
		Model:     aux.Model,
		Models:    aux.Models,
		Cookie:    aux.Cookie,
		CSRFToken: aux.CSRFToken,
		StatsigID: aux.StatsigID,
		UserAgent: aux.UserAgent,
		Origin:    aux.Origin,
		Extra:     aux.Extra,
	}
	if aux.Timeout != "" {
		d, err := time.ParseDuration(aux.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", aux.Timeout, err)
		}
		s.Timeout = d
	}
	if aux.MaxWait != "" {
		d, err := time.ParseDuration(aux.MaxWait)
		if err != nil {
			return fmt.Errorf("invalid max_wait %q: %w", aux.MaxWait, err)
		}
		s.MaxWait = d
	}
	return nil
}

// Document is the full configuration document: category → provider → settings.
type Document map[string]map[string]Settings

// Store is a process-wide read-mostly configuration store with atomic
// snapshot replacement on reload.
type Store struct {
	path     string
	snapshot atomic.Pointer[Document]
	logger   *zap.Logger
}

// NewStore loads the document at path. The file is read once; call
// Reload (or attach a Watcher) to pick up changes.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{path: path, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStoreFromDocument wraps an already-parsed document, mainly for tests
// and embedding hosts that manage their own files.
func NewStoreFromDocument(doc Document, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger}
	s.snapshot.Store(&doc)
	return s
}

// Reload re-reads the backing file and swaps the snapshot atomically.
// A reader holding the old snapshot keeps a consistent view.
func (s *Store) Reload() error {
	if s.path == "" {
		return types.NewError(types.ErrConfigMissing, "store has no backing file")
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return types.NewError(types.ErrConfigMissing, fmt.Sprintf("read config %s", s.path)).WithCause(err)
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return types.NewError(types.ErrConfigMissing, fmt.Sprintf("parse config %s", s.path)).WithCause(err)
	}
	s.snapshot.Store(&doc)
	s.logger.Info("config loaded",
		zap.String("path", s.path),
		zap.Int("categories", len(doc)),
	)
	return nil
}

// Get returns the settings for (category, provider).
func (s *Store) Get(category, provider string) (Settings, error) {
	doc := s.snapshot.Load()
	if doc == nil {
		return Settings{}, types.NewError(types.ErrConfigMissing, "config not loaded")
	}
	providers, ok := (*doc)[category]
	if !ok {
		return Settings{}, types.NewError(types.ErrConfigMissing, fmt.Sprintf("category %q not configured", category))
	}
	settings, ok := providers[provider]
	if !ok {
		return Settings{}, types.NewError(types.ErrConfigMissing, fmt.Sprintf("provider %q not configured in category %q", provider, category))
	}
	return settings, nil
}

// ListModels returns the model catalog for (category, provider).
func (s *Store) ListModels(category, provider string) ([]string, error) {
	settings, err := s.Get(category, provider)
	if err != nil {
		return nil, err
	}
	if len(settings.Models) > 0 {
		return settings.Models, nil
	}
	if settings.Model != "" {
		return []string{settings.Model}, nil
	}
	return nil, nil
}

// Categories lists the configured categories of the current snapshot.
func (s *Store) Categories() []string {
	doc := s.snapshot.Load()
	if doc == nil {
		return nil
	}
	out := make([]string, 0, len(*doc))
	for c := range *doc {
		out = append(out, c)
	}
	return out
}
