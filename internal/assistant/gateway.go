// Package assistant implements the text-generation capability used by the
// router: intent classification and persona answers over a chat model.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"triage-bot/internal/integrations/openai"
)

const classifierMaxTokens = 8

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type LLMClient interface {
	Chat(ctx context.Context, p openai.ChatParams) (string, error)
}

// Gateway sends fixed-instruction prompts to the chat model. The model name
// is read from <paramPrefix>/config/openai_model on first use.
type Gateway struct {
	params      ParamGetter
	llm         LLMClient
	paramPrefix string

	cacheMu     sync.RWMutex
	cacheLoaded bool
	model       string
}

func NewGateway(p ParamGetter, llm LLMClient, paramPrefix string) (*Gateway, error) {
	if p == nil {
		return nil, errors.New("assistant: param getter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("assistant: llm client must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("assistant: parameter prefix must not be empty")
	}
	return &Gateway{params: p, llm: llm, paramPrefix: paramPrefix}, nil
}

// Classify returns the model's raw category answer for text.
func (g *Gateway) Classify(ctx context.Context, text string) (string, error) {
	model, err := g.ensureModel(ctx)
	if err != nil {
		return "", err
	}
	zero := 0.0
	raw, err := g.llm.Chat(ctx, openai.ChatParams{
		Model:       model,
		Messages:    buildClassifierMessages(text),
		Temperature: &zero,
		MaxTokens:   classifierMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("assistant: classify: %w", err)
	}
	return raw, nil
}

// Generate answers text in the assistant persona. A blank completion is
// replaced with FallbackAnswer.
func (g *Gateway) Generate(ctx context.Context, text string) (string, error) {
	model, err := g.ensureModel(ctx)
	if err != nil {
		return "", err
	}
	raw, err := g.llm.Chat(ctx, openai.ChatParams{
		Model:    model,
		Messages: buildAnswerMessages(text),
	})
	if err != nil {
		return "", fmt.Errorf("assistant: generate: %w", err)
	}
	return normalizeAnswer(raw), nil
}

func (g *Gateway) ensureModel(ctx context.Context) (string, error) {
	g.cacheMu.RLock()
	if g.cacheLoaded {
		model := g.model
		g.cacheMu.RUnlock()
		return model, nil
	}
	g.cacheMu.RUnlock()

	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()
	if g.cacheLoaded {
		return g.model, nil
	}

	model, err := g.params.GetParameter(ctx, g.paramPrefix+"/config/openai_model")
	if err != nil {
		return "", fmt.Errorf("assistant: load openai model: %w", err)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("assistant: openai model parameter is empty")
	}
	g.model = model
	g.cacheLoaded = true
	return model, nil
}
