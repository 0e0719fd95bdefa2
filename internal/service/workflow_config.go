package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/damoang/recipe-cms/internal/repository"
	"github.com/damoang/recipe-cms/pkg/cache"
	"github.com/damoang/recipe-cms/pkg/logger"
	"github.com/go-playground/validator/v10"
)

// WorkflowSettingPrefix setting key prefix for per post type overrides
const WorkflowSettingPrefix = "workflow.post_type."

// WorkflowSettingKey returns workflow.post_type.<key>
func WorkflowSettingKey(workflowKey string) string {
	return WorkflowSettingPrefix + workflowKey
}

var configValidator = validator.New()

// ConfigSource looks up a workflow override for a workflow key
type ConfigSource interface {
	Lookup(ctx context.Context, workflowKey string) (*domain.WorkflowConfig, bool, error)
}

// ConfigProvider resolves the workflow config for a workflow key
type ConfigProvider interface {
	Resolve(ctx context.Context, workflowKey string) (*domain.WorkflowConfig, error)
}

type workflowConfigProvider struct {
	sources  []ConfigSource
	fallback *domain.WorkflowConfig
}

// NewWorkflowConfigProvider checks sources in order and falls back to the built-in default
func NewWorkflowConfigProvider(sources ...ConfigSource) ConfigProvider {
	return NewWorkflowConfigProviderWithDefault(domain.DefaultWorkflowConfig(), sources...)
}

// NewWorkflowConfigProviderWithDefault is NewWorkflowConfigProvider with a custom fallback (nil for none)
func NewWorkflowConfigProviderWithDefault(fallback *domain.WorkflowConfig, sources ...ConfigSource) ConfigProvider {
	return &workflowConfigProvider{sources: sources, fallback: fallback}
}

func (p *workflowConfigProvider) Resolve(ctx context.Context, workflowKey string) (*domain.WorkflowConfig, error) {
	for _, src := range p.sources {
		cfg, ok, err := src.Lookup(ctx, workflowKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := ValidateWorkflowConfig(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", WorkflowSettingKey(workflowKey), err)
		}
		return cfg, nil
	}
	if p.fallback == nil {
		return nil, fmt.Errorf("%w: no workflow config for %q", common.ErrWorkflowConfig, workflowKey)
	}
	return p.fallback, nil
}

// ValidateWorkflowConfig checks struct tags and that every edge joins known states
func ValidateWorkflowConfig(cfg *domain.WorkflowConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: empty config", common.ErrWorkflowConfig)
	}
	if err := configValidator.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", common.ErrWorkflowConfig, err)
	}
	for _, t := range cfg.Transitions {
		if !cfg.HasState(t.From) || !cfg.HasState(t.To) {
			return fmt.Errorf("%w: transition %s -> %s references an unknown state",
				common.ErrWorkflowConfig, t.From, t.To)
		}
	}
	return nil
}

// StaticSource serves overrides loaded from the YAML config file
type StaticSource map[string]*domain.WorkflowConfig

func (s StaticSource) Lookup(_ context.Context, workflowKey string) (*domain.WorkflowConfig, bool, error) {
	cfg, ok := s[workflowKey]
	if !ok || cfg == nil {
		return nil, false, nil
	}
	return cfg, true, nil
}

// SettingSource serves overrides stored as JSON in the settings table
type SettingSource struct {
	repo *repository.SettingRepository
}

// NewSettingSource creates a SettingSource
func NewSettingSource(repo *repository.SettingRepository) *SettingSource {
	return &SettingSource{repo: repo}
}

func (s *SettingSource) Lookup(_ context.Context, workflowKey string) (*domain.WorkflowConfig, bool, error) {
	setting, err := s.repo.Get(WorkflowSettingKey(workflowKey))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if strings.TrimSpace(setting.Value) == "" {
		return nil, false, nil
	}
	var cfg domain.WorkflowConfig
	if err := json.Unmarshal([]byte(setting.Value), &cfg); err != nil {
		return nil, false, fmt.Errorf("%w: %s is not valid JSON: %v", common.ErrWorkflowConfig, setting.Key, err)
	}
	return &cfg, true, nil
}

// Save validates and stores an override
func (s *SettingSource) Save(workflowKey string, cfg *domain.WorkflowConfig) error {
	if err := ValidateWorkflowConfig(cfg); err != nil {
		return err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.repo.Upsert(WorkflowSettingKey(workflowKey), string(raw))
}

// CachedConfigProvider caches resolved configs in Redis. Cache errors are
// logged and fall through to the wrapped provider.
type CachedConfigProvider struct {
	inner ConfigProvider
	cache cache.Service
}

// NewCachedConfigProvider wraps inner with the cache; a nil cache disables caching
func NewCachedConfigProvider(inner ConfigProvider, c cache.Service) *CachedConfigProvider {
	return &CachedConfigProvider{inner: inner, cache: c}
}

func (p *CachedConfigProvider) Resolve(ctx context.Context, workflowKey string) (*domain.WorkflowConfig, error) {
	if p.cache == nil || !p.cache.IsAvailable() {
		return p.inner.Resolve(ctx, workflowKey)
	}

	var cached domain.WorkflowConfig
	err := p.cache.GetWorkflowConfig(ctx, workflowKey, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.GetLogger().Warn().Err(err).Str("workflow_key", workflowKey).Msg("workflow config cache read failed")
	}

	cfg, err := p.inner.Resolve(ctx, workflowKey)
	if err != nil {
		return nil, err
	}
	if err := p.cache.SetWorkflowConfig(ctx, workflowKey, cfg); err != nil {
		logger.GetLogger().Warn().Err(err).Str("workflow_key", workflowKey).Msg("workflow config cache write failed")
	}
	return cfg, nil
}

// Invalidate drops the cached config for a workflow key
func (p *CachedConfigProvider) Invalidate(ctx context.Context, workflowKey string) error {
	if p.cache == nil {
		return nil
	}
	return p.cache.InvalidateWorkflowConfig(ctx, workflowKey)
}
