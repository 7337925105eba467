// Package app wires configuration into a ready handler. Both the Lambda and
// the Vercel entry points build through here.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"chat-relay/handler"
	"chat-relay/internal/config"
	"chat-relay/internal/integrations/deepseek"
	"chat-relay/internal/integrations/gemini"
	"chat-relay/internal/integrations/paramstore"
	"chat-relay/internal/usecase"
)

// NewLogger returns the JSON stdout logger used in every deployment.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewProvider selects the upstream strategy for cfg.Provider.
func NewProvider(cfg config.Config, httpClient *http.Client) (usecase.Provider, error) {
	switch cfg.Provider {
	case config.ProviderDeepSeek:
		return deepseek.NewClient(
			deepseek.WithBaseURL(cfg.BaseURL),
			deepseek.WithModel(cfg.Model),
			deepseek.WithHTTPClient(httpClient),
		), nil
	case config.ProviderGemini:
		return gemini.NewClient(
			gemini.WithBaseURL(cfg.BaseURL),
			gemini.WithModel(cfg.Model),
			gemini.WithHTTPClient(httpClient),
		), nil
	default:
		return nil, fmt.Errorf("app: unsupported provider %q", cfg.Provider)
	}
}

// NewKeySource reads the key from SSM when cfg.APIKeyParameter is set and
// from the provider's environment variable otherwise.
func NewKeySource(ctx context.Context, cfg config.Config, lookup config.LookupFunc) (config.KeySource, error) {
	if cfg.APIKeyParameter == "" {
		return config.NewEnvKeySource(cfg.APIKeyEnv(), lookup)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}
	ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app: create SSM client: %w", err)
	}
	return config.NewParamStoreKeySource(ps, cfg.APIKeyParameter)
}

// Build assembles the chat handler for cfg.
func Build(ctx context.Context, cfg config.Config, lookup config.LookupFunc, logger *slog.Logger) (*handler.Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	provider, err := NewProvider(cfg, &http.Client{})
	if err != nil {
		return nil, err
	}

	keys, err := NewKeySource(ctx, cfg, lookup)
	if err != nil {
		return nil, err
	}

	svc, err := usecase.NewForwardService(provider, keys,
		usecase.WithMaxMessageLength(cfg.MaxMessageLength),
		usecase.WithTimeout(cfg.UpstreamTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create forward service: %w", err)
	}

	h, err := handler.NewHandler(svc, handler.WithCORS(cfg.EnableCORS), handler.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("app: create handler: %w", err)
	}

	logger.Info("chat handler ready",
		"provider", provider.Name(),
		"max_message_length", cfg.MaxMessageLength,
		"cors", cfg.EnableCORS,
		"key_source", keySourceName(cfg),
	)
	return h, nil
}

func keySourceName(cfg config.Config) string {
	if cfg.APIKeyParameter != "" {
		return "ssm"
	}
	return "env:" + cfg.APIKeyEnv()
}
