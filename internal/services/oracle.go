package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mindpal/mindpal-backend/internal/logger"
	"github.com/mindpal/mindpal-backend/internal/noteerr"
	"github.com/mindpal/mindpal-backend/internal/utils"
)

// CategoryOracle infers category labels from a conceptualization note's
// content. Any implementation satisfying the 4-7 distinct-label contract is
// substitutable; bound checking happens in the resolver, not here.
type CategoryOracle interface {
	SuggestCategories(ctx context.Context, content string) ([]string, error)
}

// oracleContentLimit caps how much of the note is sent for analysis.
const oracleContentLimit = 2000

type openAIOracle struct {
	client *openai.Client
	log    *logger.Logger
	model  string
}

func NewOpenAIOracle(log *logger.Logger) (CategoryOracle, error) {
	serviceLog := log.With("service", "OpenAIOracle")
	apiKey := utils.GetEnv("OPENAI_API_KEY", "", log)
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	model := utils.GetEnv("OPENAI_MODEL", openai.GPT4oMini, log)
	return &openAIOracle{
		client: openai.NewClient(apiKey),
		log:    serviceLog,
		model:  model,
	}, nil
}

func (o *openAIOracle) SuggestCategories(ctx context.Context, content string) ([]string, error) {
	content = truncateForOracle(content)

	prompt := fmt.Sprintf(`You are assisting a psychologist in organizing clinical notes.

Analyze the following conceptualization note and suggest 4-7 appropriate categories
for organizing this information into separate files:

---
%s
---

Return ONLY a JSON array of category names, nothing else. Example:
["Background", "Presenting Problem", "Symptoms", "Treatment Plan"]

Categories should be:
- Clinically relevant
- Distinct from each other
- Cover the main themes in the note
- Use professional terminology
`, content)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		o.log.Warn("Category inference call failed", "error", err)
		return nil, noteerr.Oracle(err, isTransientOracleErr(err), "categorization oracle call failed")
	}
	if len(resp.Choices) == 0 {
		return nil, noteerr.Oracle(nil, false, "categorization oracle returned no choices")
	}

	labels, err := parseCategoryList(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, noteerr.Oracle(err, false, "categorization oracle returned malformed output")
	}
	return labels, nil
}

// truncateForOracle caps the analyzed content, backing off to a rune
// boundary so a multi-byte character is never cut mid-sequence.
func truncateForOracle(content string) string {
	if len(content) <= oracleContentLimit {
		return content
	}
	cut := oracleContentLimit
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}

// parseCategoryList extracts a JSON string array from a model reply,
// tolerating markdown code fences around it.
func parseCategoryList(raw string) ([]string, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		parts := strings.SplitN(text, "```", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("unterminated code fence")
		}
		text = parts[1]
		text = strings.TrimPrefix(text, "json")
		text = strings.TrimSpace(text)
	}
	var labels []string
	if err := json.Unmarshal([]byte(text), &labels); err != nil {
		return nil, fmt.Errorf("parse category array: %w", err)
	}
	return labels, nil
}

func isTransientOracleErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.HTTPStatusCode
		return code == 408 || code == 429 || (code >= 500 && code <= 599)
	}
	return false
}
