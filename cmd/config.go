package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"triage-bot/internal/router"
	"triage-bot/internal/state"
)

const defaultWebhookMaxAge = 2 * time.Minute

// appConfig is read from the environment only in this file.
type appConfig struct {
	ParamPrefix    string
	FollowUpTable  string
	IgnoredSenders []string
	HandoffTimeout time.Duration
	DedupRetention time.Duration
	WebhookMaxAge  time.Duration
	OpenAIBaseURL  string
	PollTimeout    int
	MaxInFlight    int
}

func loadConfig(getenv func(string) string) (appConfig, error) {
	prefix, err := mustEnv(getenv, "PARAM_PREFIX")
	if err != nil {
		return appConfig{}, err
	}
	handoff, err := envDuration(getenv, "HANDOFF_TIMEOUT", router.DefaultHandoffTimeout)
	if err != nil {
		return appConfig{}, err
	}
	retention, err := envDuration(getenv, "DEDUP_RETENTION", state.DefaultDedupRetention)
	if err != nil {
		return appConfig{}, err
	}
	maxAge, err := envDuration(getenv, "WEBHOOK_MAX_AGE", defaultWebhookMaxAge)
	if err != nil {
		return appConfig{}, err
	}
	return appConfig{
		ParamPrefix:    prefix,
		FollowUpTable:  strings.TrimSpace(getenv("FOLLOWUP_TABLE")),
		IgnoredSenders: envList(getenv, "IGNORED_SENDERS"),
		HandoffTimeout: handoff,
		DedupRetention: retention,
		WebhookMaxAge:  maxAge,
		OpenAIBaseURL:  strings.TrimSpace(getenv("OPENAI_BASE_URL")),
		PollTimeout:    envInt(getenv, "POLL_TIMEOUT_SECONDS", 30),
		MaxInFlight:    envInt(getenv, "MAX_IN_FLIGHT", 16),
	}, nil
}

func mustEnv(getenv func(string) string, key string) (string, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return v, nil
}

func envInt(getenv func(string) string, key string, def int) int {
	v := getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// envDuration rejects malformed values rather than silently using def, since
// a typo in a timeout changes routing behaviour.
func envDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func envList(getenv func(string) string, key string) []string {
	var out []string
	for _, part := range strings.Split(getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
