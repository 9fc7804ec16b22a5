package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultMaxTokens   = 4096
	defaultTemperature = 0.7
	defaultAPIVersion  = "2025-01-01-preview"

	audioVoice  = "sage"
	audioFormat = "mp3"
)

// Config selects the completion endpoint. When BaseURL is empty the Azure
// endpoint for InstanceName is used.
type Config struct {
	APIKey          string
	InstanceName    string
	BaseURL         string
	APIVersion      string
	Deployment      string
	TextDeployment  string
	AudioDeployment string
	Timeout         time.Duration
	MaxTokens       int
	Temperature     float64
	HTTPClient      *http.Client
}

// OpenAI is a Generator backed by an OpenAI-compatible chat completion API.
type OpenAI struct {
	client      openai.Client
	textModel   string
	audioModel  string
	maxTokens   int64
	temperature float64
	logger      *slog.Logger
}

// NewOpenAI creates an OpenAI generator.
func NewOpenAI(cfg Config, logger *slog.Logger) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrNotConfigured)
	}
	if cfg.Deployment == "" && cfg.TextDeployment == "" {
		return nil, fmt.Errorf("%w: deployment is required", ErrNotConfigured)
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	switch {
	case cfg.BaseURL != "":
		opts = append(opts,
			option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"),
			option.WithAPIKey(cfg.APIKey),
		)
	case cfg.InstanceName != "":
		version := cfg.APIVersion
		if version == "" {
			version = defaultAPIVersion
		}
		endpoint := fmt.Sprintf("https://%s.openai.azure.com/", cfg.InstanceName)
		opts = append(opts,
			azure.WithEndpoint(endpoint, version),
			azure.WithAPIKey(cfg.APIKey),
		)
	default:
		return nil, fmt.Errorf("%w: instance name or base url is required", ErrNotConfigured)
	}

	g := &OpenAI{
		client:      openai.NewClient(opts...),
		textModel:   firstNonEmpty(cfg.TextDeployment, cfg.Deployment),
		audioModel:  firstNonEmpty(cfg.AudioDeployment, cfg.Deployment, cfg.TextDeployment),
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		logger:      logger,
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	if g.temperature <= 0 {
		g.temperature = defaultTemperature
	}
	return g, nil
}

// Generate implements Generator.
func (g *OpenAI) Generate(ctx context.Context, req Request) (Reply, error) {
	model := g.textModel
	var reqOpts []option.RequestOption
	if req.Audio {
		model = g.audioModel
		reqOpts = append(reqOpts,
			option.WithJSONSet("modalities", []string{"text", "audio"}),
			option.WithJSONSet("audio", map[string]string{"voice": audioVoice, "format": audioFormat}),
		)
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    toParams(req.Messages),
		MaxTokens:   openai.Int(g.maxTokens),
		Temperature: openai.Float(g.temperature),
	}

	resp, err := g.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return Reply{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, ErrEmptyReply
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return Reply{}, ErrContentFiltered
	}
	msg := choice.Message
	reply := Reply{Text: msg.Content, AudioData: msg.Audio.Data}
	if reply.Text == "" {
		reply.Text = msg.Audio.Transcript
	}
	if reply.Text == "" && reply.AudioData == "" {
		return Reply{}, ErrEmptyReply
	}
	return reply, nil
}

func toParams(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// classify maps service refusals to ErrContentFiltered. Azure reports
// content-filter rejections as 400 with code "content_filter".
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == "content_filter" || apiErr.StatusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: %w", ErrContentFiltered, err)
		}
	}
	return fmt.Errorf("chat completion: %w", err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
