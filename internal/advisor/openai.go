package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"prioritizer/internal/task"
)

// Config for the OpenAI-backed advisor.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAI implements Advisor against the chat completions API.
type OpenAI struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAI builds the advisor client. Callers should pass cfg from the
// environment; an empty API key should be handled by using Noop instead.
func NewOpenAI(cfg Config, logger *slog.Logger) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &OpenAI{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

func (o *OpenAI) Configured() bool { return true }

// suggestionPayload matches the JSON array the model is asked to emit.
type suggestionPayload struct {
	Title                   string  `json:"title"`
	Description             string  `json:"description"`
	Category                string  `json:"category"`
	EstimatedResolutionTime string  `json:"estimated_resolution_time"`
	ConfidenceLevel         float64 `json:"confidence_level"`
}

// Suggest asks the model for actionable suggestions. The caller guarantees
// the task passed the privacy gate; sensitive tasks must never reach here.
func (o *OpenAI) Suggest(ctx context.Context, ev task.Event) ([]task.Suggestion, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`Analyze this IT support request and provide specific, actionable suggestions for the user:

Title: %s
Description: %s
User Role: %s
Category: %s

Provide 3-5 suggestions as a JSON array with this structure:
[{"title": "...", "description": "...", "category": "self_help|workaround|escalation|prevention", "estimated_resolution_time": "5 minutes", "confidence_level": 0.8}]

Focus on practical, immediate solutions the user can try themselves first. Respond with the JSON array only.`,
		ev.Title, ev.Description, ev.RequesterRole, ev.Category)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are an expert IT support specialist providing practical, actionable solutions."),
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(800),
		Temperature:         openai.Float(0.3),
	})
	if err != nil {
		return nil, fmt.Errorf("advisor suggestions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("advisor suggestions: empty response")
	}

	var payload []suggestionPayload
	content := stripCodeFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("advisor suggestions: decode response: %w", err)
	}

	suggestions := make([]task.Suggestion, 0, len(payload))
	for _, s := range payload {
		if s.Title == "" {
			continue
		}
		suggestions = append(suggestions, task.Suggestion{
			Title:                   s.Title,
			Description:             s.Description,
			Category:                normalizeCategory(s.Category),
			EstimatedResolutionTime: s.EstimatedResolutionTime,
			Confidence:              clamp01(s.ConfidenceLevel),
		})
		if len(suggestions) == MaxSuggestions {
			break
		}
	}
	return suggestions, nil
}

// AssessRisk asks the model for a short risk narrative.
func (o *OpenAI) AssessRisk(ctx context.Context, ev task.Event, metrics task.PriorityMetrics) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`Provide a brief risk assessment for this IT issue:

Title: %s
Description: %s
Risk Score: %.1f/10
Business Impact: %.1f/10
Category: %s

Provide a 2-3 sentence risk assessment focusing on potential business impact and recommended mitigation approach.`,
		ev.Title, ev.Description, metrics.RiskScore, metrics.BusinessImpactScore, ev.Category)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a risk assessment specialist for IT operations."),
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(200),
		Temperature:         openai.Float(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("advisor risk assessment: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("advisor risk assessment: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// stripCodeFence removes a markdown code fence if the model wrapped its JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func normalizeCategory(c string) string {
	switch c {
	case task.SuggestionSelfHelp, task.SuggestionWorkaround,
		task.SuggestionEscalation, task.SuggestionPrevention:
		return c
	default:
		return task.SuggestionSelfHelp
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
