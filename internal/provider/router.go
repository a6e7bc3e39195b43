package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"daftarchat/internal/config"
)

const defaultMaxTokens = 3000

// Options controls one generation call. Zero values fall back to defaults.
type Options struct {
	// Temperature is clamped to [0, 1]; 0 means "use the default".
	Temperature float32
	// MaxTokens bounds the response length.
	MaxTokens int
	// StructuredOutput asks the backend for machine-parseable output only.
	StructuredOutput bool
}

// Generator is the uniform text-generation contract consumed by the
// orchestrator and the memory summarizer.
type Generator interface {
	Generate(ctx context.Context, userID int64, prompt, system string, opts Options) (string, error)
}

// Router resolves the active backend for a user and delegates the call to
// exactly one adapter. It performs no retries; a failed call is the
// caller's to resend.
type Router struct {
	cfg       *config.Config
	selection *Selection
	factory   func(ctx context.Context, name string, provCfg config.ProviderConfig, modelName string) (chatModel, error)

	mu     sync.Mutex
	models map[string]chatModel
}

// NewRouter builds a router over the configured providers. selection may be
// nil, in which case every call uses the process-wide default.
func NewRouter(cfg *config.Config, selection *Selection) *Router {
	return &Router{
		cfg:       cfg,
		selection: selection,
		factory:   newChatModel,
		models:    make(map[string]chatModel),
	}
}

// Generate sends one prompt to the user's active backend and returns the
// response text.
func (r *Router) Generate(ctx context.Context, userID int64, prompt, system string, opts Options) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt cannot be empty")
	}
	providerName, modelName := r.resolve(ctx, userID)
	provCfg, ok := r.cfg.Providers[providerName]
	if !ok {
		return "", fmt.Errorf("provider %s not configured", providerName)
	}

	cm, err := r.model(ctx, providerName, provCfg, modelName)
	if err != nil {
		return "", err
	}

	if opts.StructuredOutput {
		system = strings.TrimSpace(system + "\n\nRespond with valid JSON only. No prose, no markdown fences.")
	}
	messages := make([]*schema.Message, 0, 2)
	if system != "" {
		messages = append(messages, &schema.Message{Role: schema.System, Content: system})
	}
	messages = append(messages, &schema.Message{Role: schema.User, Content: prompt})

	callOpts := []model.Option{model.WithTemperature(clampTemperature(opts.Temperature))}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, model.WithMaxTokens(opts.MaxTokens))
	}

	resp, err := cm.Generate(ctx, messages, callOpts...)
	if err != nil {
		return "", fmt.Errorf("generate (%s/%s): %w", providerName, modelName, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("generate (%s/%s): empty response", providerName, modelName)
	}
	return resp.Content, nil
}

// resolve picks the active provider/model for the user, falling back to the
// process-wide default when nothing is persisted.
func (r *Router) resolve(ctx context.Context, userID int64) (string, string) {
	providerName := r.cfg.BasicConfig.DefaultProvider
	modelName := ""
	if r.selection != nil && userID > 0 {
		if p, m, err := r.selection.Active(ctx, userID); err == nil && p != "" {
			providerName, modelName = p, m
		}
	}
	if modelName == "" {
		modelName = r.cfg.Providers[providerName].Model
	}
	return providerName, modelName
}

func (r *Router) model(ctx context.Context, name string, provCfg config.ProviderConfig, modelName string) (chatModel, error) {
	key := name + "/" + modelName
	r.mu.Lock()
	cm, ok := r.models[key]
	r.mu.Unlock()
	if ok {
		return cm, nil
	}

	cm, err := r.factory(ctx, name, provCfg, modelName)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.models[key] = cm
	r.mu.Unlock()
	return cm, nil
}

func clampTemperature(t float32) float32 {
	if t <= 0 {
		return 0.7
	}
	if t > 1 {
		return 1
	}
	return t
}
