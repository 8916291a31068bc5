package llm

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ocr-eval/harness/pkg/config"
)

// Conventional environment variables consulted when a provider has no key
// in the configuration.
var apiKeyEnv = map[string]string{
	"openai": "OPENAI_API_KEY",
	"gemini": "GOOGLE_API_KEY",
	"groq":   "GROQ_API_KEY",
}

// Registry holds one Client per configured provider.
type Registry struct {
	clients map[string]*Client
}

func NewRegistry(cfg config.LLMConfig) *Registry {
	r := &Registry{clients: make(map[string]*Client, len(cfg.Providers))}
	for name, p := range cfg.Providers {
		key := p.APIKey
		if key == "" {
			if env, ok := apiKeyEnv[name]; ok {
				key = os.Getenv(env)
			}
		}
		r.clients[name] = NewClient(name, ClientConfig{
			BaseURL:   p.BaseURL,
			APIKey:    key,
			Timeout:   time.Duration(cfg.TimeoutSec) * time.Second,
			MaxTokens: cfg.MaxTokens,
		})
	}
	return r
}

// Add registers or replaces a provider client.
func (r *Registry) Add(c *Client) {
	r.clients[c.Name()] = c
}

func (r *Registry) Client(provider string) (*Client, error) {
	c, ok := r.clients[provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q (configured: %v)", provider, r.Providers())
	}
	return c, nil
}

func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cleaners builds the configured cleaners in order.
func (r *Registry) Cleaners(cfgs []config.CleanerConfig) ([]*Cleaner, error) {
	cleaners := make([]*Cleaner, 0, len(cfgs))
	for _, cc := range cfgs {
		client, err := r.Client(cc.Provider)
		if err != nil {
			return nil, fmt.Errorf("cleaner %s: %w", cc.Name, err)
		}
		cleaners = append(cleaners, NewCleaner(cc.Name, cc.Model, cc.Temperature, cc.Correct, client))
	}
	return cleaners, nil
}

func (r *Registry) Judge(cfg config.JudgeConfig) (*Judge, error) {
	client, err := r.Client(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("judge: %w", err)
	}
	return NewJudge(cfg.Model, cfg.Temperature, client), nil
}
