package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"

	"triage-bot/handler"
	"triage-bot/internal/assistant"
	"triage-bot/internal/domain"
	"triage-bot/internal/integrations/openai"
	"triage-bot/internal/integrations/paramstore"
	"triage-bot/internal/integrations/telegram"
	"triage-bot/internal/intent"
	"triage-bot/internal/repository"
	"triage-bot/internal/responder"
	"triage-bot/internal/router"
	"triage-bot/internal/state"
)

var verbose bool

func main() {
	root := rootCmd()
	root.SetArgs(defaultArgs(os.Args[1:], os.Getenv))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// defaultArgs runs the lambda command when the Lambda runtime starts the
// binary without arguments.
func defaultArgs(args []string, getenv func(string) string) []string {
	if len(args) == 0 && getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		return []string{"lambda"}
	}
	return args
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "triage-bot",
		Short:         "Telegram triage assistant with human handoff",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(pollCmd(), lambdaCmd(), followupsCmd())
	return root
}

func pollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Long-poll Telegram for updates and route them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, false)
			if err != nil {
				return fail("failed to start", err)
			}
			slog.Info("router ready", "watermark", a.router.Watermark())
			return a.bot.Poll(ctx, func(ctx context.Context, msg domain.InboundMessage) {
				a.router.Handle(ctx, msg)
			})
		},
	}
}

func lambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve the Telegram webhook behind API Gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, true)
			if err != nil {
				return fail("failed to start", err)
			}
			secret, err := a.params.GetOptionalToken(ctx, a.cfg.ParamPrefix+"/telegram-webhook-secret")
			if err != nil {
				return fail("failed to load webhook secret", err)
			}
			if secret == "" {
				slog.Warn("webhook secret not configured; accepting unauthenticated deliveries")
			}

			h, err := handler.NewHandler(a.router, a.bot, secret, slog.Default())
			if err != nil {
				return fail("failed to create handler", err)
			}
			lambda.Start(h.Handle)
			return nil
		},
	}
}

func followupsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "followups <conversation-id>",
		Short: "Print the follow-up journal of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			table, err := mustEnv(os.Getenv, "FOLLOWUP_TABLE")
			if err != nil {
				return fail("missing configuration", err)
			}
			awsCfg, err := config.LoadDefaultConfig(ctx)
			if err != nil {
				return fail("failed to load AWS config", err)
			}
			journal, err := newJournal(awsCfg, table)
			if err != nil {
				return fail("failed to start", err)
			}
			return printFollowUps(ctx, cmd, journal, args[0], limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of events to print")
	return cmd
}

type followUpReader interface {
	GetSummary(ctx context.Context, conversationID string) (domain.FollowUpSummary, bool, error)
	ListEvents(ctx context.Context, conversationID string, limit int) ([]domain.FollowUpEvent, error)
}

func printFollowUps(ctx context.Context, cmd *cobra.Command, journal followUpReader, conversationID string, limit int) error {
	out := cmd.OutOrStdout()
	summary, found, err := journal.GetSummary(ctx, conversationID)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(out, "no follow-up events for %s\n", conversationID)
		return nil
	}
	fmt.Fprintf(out, "conversation %s: last %s at %s (awaiting human: %t)\n",
		conversationID, summary.LastKind, summary.LastActivity.Format(time.RFC3339), summary.AwaitingHuman())

	events, err := journal.ListEvents(ctx, conversationID, limit)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Fprintf(out, "%s  %-18s %s  %q\n", ev.At.Format(time.RFC3339), ev.Kind, ev.MessageID, ev.Text)
		if ev.Answer != "" {
			fmt.Fprintf(out, "%20s answer: %q\n", "", ev.Answer)
		}
	}
	return nil
}

// app is the wired routing stack shared by the poll and lambda commands.
type app struct {
	cfg    appConfig
	params *paramstore.Client
	bot    *telegram.Client
	router *router.Router
}

// buildApp wires the routing stack. In webhook mode the process is started
// by the delivery it has to answer, so staleness is judged by message age
// instead of the startup watermark.
func buildApp(ctx context.Context, webhook bool) (*app, error) {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	// ---- AWS SDK config ----
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	// ---- Clients ----
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("create SSM client: %w", err)
	}
	openaiClient, err := openai.NewClient(params, cfg.ParamPrefix, openai.WithBaseURL(cfg.OpenAIBaseURL))
	if err != nil {
		return nil, fmt.Errorf("create OpenAI client: %w", err)
	}
	gateway, err := assistant.NewGateway(params, openaiClient, cfg.ParamPrefix)
	if err != nil {
		return nil, fmt.Errorf("create assistant gateway: %w", err)
	}
	classifier, err := intent.NewClassifier(gateway, logger)
	if err != nil {
		return nil, fmt.Errorf("create intent classifier: %w", err)
	}

	botToken, err := params.GetToken(ctx, cfg.ParamPrefix+"/telegram-token")
	if err != nil {
		return nil, fmt.Errorf("load telegram token: %w", err)
	}
	bot, err := telegram.New(botToken,
		telegram.WithLogger(logger),
		telegram.WithPollTimeout(cfg.PollTimeout),
		telegram.WithMaxInFlight(cfg.MaxInFlight),
	)
	if err != nil {
		return nil, err
	}
	replies, err := responder.New(bot)
	if err != nil {
		return nil, err
	}

	// ---- Router ----
	routerCfg := router.Config{
		IgnoredSenders: cfg.IgnoredSenders,
		HandoffTimeout: cfg.HandoffTimeout,
		Logger:         logger,
	}
	if webhook {
		routerCfg.MaxAge = cfg.WebhookMaxAge
	}
	if cfg.FollowUpTable != "" {
		journal, err := newJournal(awsCfg, cfg.FollowUpTable)
		if err != nil {
			return nil, err
		}
		routerCfg.Journal = journal
	} else {
		logger.Info("FOLLOWUP_TABLE not set; follow-up journal disabled")
	}

	rt, err := router.New(state.NewMemoryStore(cfg.DedupRetention), classifier, gateway, replies, routerCfg)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}
	return &app{cfg: cfg, params: params, bot: bot, router: rt}, nil
}

func newJournal(awsCfg aws.Config, table string) (*repository.Client, error) {
	journal, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), table)
	if err != nil {
		return nil, fmt.Errorf("create journal client: %w", err)
	}
	return journal, nil
}

func fail(msg string, err error) error {
	slog.Error(msg, "err", err)
	return errors.Join(errors.New(msg), err)
}
