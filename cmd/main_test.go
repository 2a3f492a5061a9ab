package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"triage-bot/internal/domain"
)

type stubJournal struct {
	summary domain.FollowUpSummary
	found   bool
	events  []domain.FollowUpEvent
	err     error
	limit   int
}

func (s *stubJournal) GetSummary(context.Context, string) (domain.FollowUpSummary, bool, error) {
	return s.summary, s.found, s.err
}

func (s *stubJournal) ListEvents(_ context.Context, _ string, limit int) ([]domain.FollowUpEvent, error) {
	s.limit = limit
	return s.events, nil
}

func runPrint(t *testing.T, j followUpReader) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	err := printFollowUps(context.Background(), cmd, j, "42", 5)
	return buf.String(), err
}

func TestPrintFollowUps(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	j := &stubJournal{
		found:   true,
		summary: domain.FollowUpSummary{ConversationID: "42", LastKind: domain.FollowUpHandoffRequested, LastActivity: at},
		events: []domain.FollowUpEvent{
			{Kind: domain.FollowUpAnswered, MessageID: "42:6", Text: "Is it free?", Answer: "Yes.", At: at.Add(-time.Minute)},
			{Kind: domain.FollowUpHandoffRequested, MessageID: "42:7", Text: "human please", At: at},
		},
	}
	out, err := runPrint(t, j)
	require.NoError(t, err)
	require.Equal(t, 5, j.limit)
	require.Contains(t, out, "conversation 42: last handoff_requested at 2026-03-01T09:00:00Z (awaiting human: true)")
	require.Contains(t, out, `answer: "Yes."`)
	require.Contains(t, out, `"human please"`)
}

func TestPrintFollowUps_NothingRecorded(t *testing.T) {
	out, err := runPrint(t, &stubJournal{})
	require.NoError(t, err)
	require.Equal(t, "no follow-up events for 42\n", out)
}

func TestPrintFollowUps_Error(t *testing.T) {
	_, err := runPrint(t, &stubJournal{err: errors.New("dynamodb down")})
	require.ErrorContains(t, err, "dynamodb down")
}

func TestRootCmd_Commands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd().Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["poll"])
	require.True(t, names["lambda"])
	require.True(t, names["followups"])
}

func TestDefaultArgs(t *testing.T) {
	inLambda := envMap(map[string]string{"AWS_LAMBDA_RUNTIME_API": "127.0.0.1:9001"})

	require.Equal(t, []string{"lambda"}, defaultArgs(nil, inLambda))
	require.Equal(t, []string{"followups", "42"}, defaultArgs([]string{"followups", "42"}, inLambda))
	require.Empty(t, defaultArgs(nil, envMap(nil)))
	require.Equal(t, []string{"poll"}, defaultArgs([]string{"poll"}, envMap(nil)))
}
