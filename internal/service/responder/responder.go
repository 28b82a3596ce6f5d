// Package responder wraps the external answer generator behind the
// single ask capability the router consumes. The model is instructed to
// return structured JSON; malformed output is repaired before parsing
// and degrades to a plain-text reply when unrecoverable.
package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	ecomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/kaptinlin/jsonrepair"

	"github.com/zaxchat/zax-backend/internal/apperr"
	"github.com/zaxchat/zax-backend/internal/config"
	"github.com/zaxchat/zax-backend/internal/service/chat"
)

const systemPrompt = `You are ZAX, the AI assistant of the Zambia Revenue Authority (ZRA).
You answer questions about tax registration, VAT, PAYE, customs and duties,
compliance certificates and ZRA e-services. Reply with a single JSON object:
{"reply": "<your answer>", "is_zra_related": <bool>, "needs_support": <bool>, "follow_ups": ["<question>", ...]}
Set needs_support to true when the question requires a human officer.
Keep follow_ups to at most three short related questions. Output JSON only.`

// Service generates bot replies via an OpenAI-compatible chat model.
type Service struct {
	chatModel ecomodel.ChatModel
}

// New creates the responder from the configured provider.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	chatModel, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Service{chatModel: chatModel}, nil
}

// newChatModel builds the eino ChatModel for the configured provider.
func newChatModel(ctx context.Context, cfg *config.Config) (ecomodel.ChatModel, error) {
	aiCfg := cfg.AI

	var apiKey, baseURL, modelName string
	switch aiCfg.Provider {
	case "openai":
		apiKey = aiCfg.OpenAI.APIKey
		baseURL = aiCfg.OpenAI.BaseURL
		modelName = aiCfg.OpenAI.Model
	case "deepseek":
		apiKey = aiCfg.DeepSeek.APIKey
		baseURL = aiCfg.DeepSeek.BaseURL
		modelName = aiCfg.DeepSeek.Model
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", aiCfg.Provider)
	}

	if apiKey == "" {
		return nil, fmt.Errorf("api_key is required for provider: %s", aiCfg.Provider)
	}
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   modelName,
	})
}

// Ask generates a reply for the user's message. Failures are reported as
// upstream-unavailable; the router converts them to the fallback apology.
func (s *Service) Ask(ctx context.Context, sessionID, message string) (*chat.Reply, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: message},
	}

	resp, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, apperr.Upstreamf("responder generate failed for session %s: %v", sessionID, err)
	}

	return parseReply(resp.Content), nil
}

// parseReply decodes the structured model output. Fenced or broken JSON
// is repaired first; anything still unparseable becomes a plain reply
// tagged as ZRA-related.
func parseReply(content string) *chat.Reply {
	raw := strings.TrimSpace(content)
	candidate := stripFences(raw)

	if !json.Valid([]byte(candidate)) {
		if fixed, err := jsonrepair.JSONRepair(candidate); err == nil {
			candidate = fixed
		}
	}

	var reply chat.Reply
	if err := json.Unmarshal([]byte(candidate), &reply); err == nil && reply.Text != "" {
		return &reply
	}

	return &chat.Reply{Text: raw, IsZRARelated: true}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
