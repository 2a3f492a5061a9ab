package assistant

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"triage-bot/internal/integrations/openai"
)

type mockParams struct {
	vals  map[string]string
	err   error
	calls int
}

func (m *mockParams) GetParameter(_ context.Context, name string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.vals[name]
	if !ok {
		return "", fmt.Errorf("param not found: %s", name)
	}
	return v, nil
}

type transientParams struct {
	*mockParams
	failOnce bool
}

func (p *transientParams) GetParameter(ctx context.Context, name string) (string, error) {
	if p.failOnce {
		p.failOnce = false
		return "", errors.New("temporary ssm failure")
	}
	return p.mockParams.GetParameter(ctx, name)
}

type capturingLLM struct {
	answer   string
	err      error
	captured []openai.ChatParams
}

func (c *capturingLLM) Chat(_ context.Context, p openai.ChatParams) (string, error) {
	c.captured = append(c.captured, p)
	return c.answer, c.err
}

func defaultParams() *mockParams {
	return &mockParams{vals: map[string]string{"/prefix/config/openai_model": " gpt-4o-mini "}}
}

func newTestGateway(t *testing.T, p ParamGetter, llm LLMClient) *Gateway {
	t.Helper()
	g, err := NewGateway(p, llm, "/prefix/")
	require.NoError(t, err)
	return g
}

func TestNewGateway_ValidatesDependencies(t *testing.T) {
	_, err := NewGateway(nil, &capturingLLM{}, "/prefix")
	require.Error(t, err)

	_, err = NewGateway(defaultParams(), nil, "/prefix")
	require.Error(t, err)

	_, err = NewGateway(defaultParams(), &capturingLLM{}, " ")
	require.Error(t, err)
}

func TestClassify_SendsClassifierPrompt(t *testing.T) {
	llm := &capturingLLM{answer: "Human\n"}
	g := newTestGateway(t, defaultParams(), llm)

	raw, err := g.Classify(context.Background(), "Can I talk to someone?")
	require.NoError(t, err)
	require.Equal(t, "Human\n", raw, "normalization belongs to the intent adapter")

	require.Len(t, llm.captured, 1)
	p := llm.captured[0]
	require.Equal(t, "gpt-4o-mini", p.Model)
	require.Len(t, p.Messages, 2)
	require.Equal(t, "system", p.Messages[0].Role)
	require.Contains(t, p.Messages[0].Content, "Return ONLY one of these words.")
	require.Equal(t, "Can I talk to someone?", p.Messages[1].Content)
	require.NotNil(t, p.Temperature)
	require.Zero(t, *p.Temperature)
	require.Equal(t, classifierMaxTokens, p.MaxTokens)
}

func TestGenerate_SendsPersonaPrompt(t *testing.T) {
	llm := &capturingLLM{answer: "  The flat is available from May.  "}
	g := newTestGateway(t, defaultParams(), llm)

	answer, err := g.Generate(context.Background(), "Is the flat available?")
	require.NoError(t, err)
	require.Equal(t, "The flat is available from May.", answer)

	p := llm.captured[0]
	require.Contains(t, p.Messages[0].Content, "You are Nest Assistant")
	require.Equal(t, "user", p.Messages[1].Role)
	require.Nil(t, p.Temperature)
}

func TestGenerate_BlankAnswerUsesFallback(t *testing.T) {
	g := newTestGateway(t, defaultParams(), &capturingLLM{answer: " \n "})
	answer, err := g.Generate(context.Background(), "Is the flat available?")
	require.NoError(t, err)
	require.Equal(t, FallbackAnswer, answer)
}

func TestGateway_LLMErrorsAreWrapped(t *testing.T) {
	upstream := &openai.HTTPStatusError{StatusCode: 429}
	g := newTestGateway(t, defaultParams(), &capturingLLM{err: upstream})

	_, err := g.Classify(context.Background(), "hello there")
	require.ErrorContains(t, err, "assistant: classify")
	require.ErrorIs(t, err, upstream)

	_, err = g.Generate(context.Background(), "hello there")
	require.ErrorContains(t, err, "assistant: generate")
	require.ErrorIs(t, err, upstream)
}

func TestGateway_ModelLoadedOnce(t *testing.T) {
	p := defaultParams()
	g := newTestGateway(t, p, &capturingLLM{answer: "assist"})
	for i := 0; i < 3; i++ {
		_, err := g.Classify(context.Background(), "question")
		require.NoError(t, err)
	}
	require.Equal(t, 1, p.calls)
}

func TestGateway_ModelLoadErrors(t *testing.T) {
	llm := &capturingLLM{answer: "assist"}
	g := newTestGateway(t, &mockParams{err: errors.New("ssm unavailable")}, llm)
	_, err := g.Generate(context.Background(), "question")
	require.ErrorContains(t, err, "load openai model")
	require.Empty(t, llm.captured)

	g = newTestGateway(t, &mockParams{vals: map[string]string{"/prefix/config/openai_model": "  "}}, llm)
	_, err = g.Classify(context.Background(), "question")
	require.ErrorContains(t, err, "empty")
}

func TestGateway_ModelLoadRetriedOnNextCall(t *testing.T) {
	p := &transientParams{mockParams: defaultParams(), failOnce: true}
	g := newTestGateway(t, p, &capturingLLM{answer: "ok"})

	_, err := g.Generate(context.Background(), "question")
	require.Error(t, err)

	answer, err := g.Generate(context.Background(), "question")
	require.NoError(t, err)
	require.Equal(t, "ok", answer)
}

func TestPrompts(t *testing.T) {
	classifier := classifierPrompt()
	for _, word := range []string{`"assist"`, `"chit-chat"`, `"human"`} {
		require.Contains(t, classifier, word)
	}
	require.Contains(t, personaPrompt(), "Keep answers concise")
}
