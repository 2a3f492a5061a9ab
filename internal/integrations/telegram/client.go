// Package telegram is the chat transport: it turns Telegram updates into
// inbound messages and delivers text replies.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"triage-bot/internal/domain"
)

const (
	defaultPollTimeout = 30 // seconds
	defaultMaxInFlight = 16
)

// HandlerFunc routes one inbound message.
type HandlerFunc func(ctx context.Context, msg domain.InboundMessage)

type options struct {
	endpoint    string
	httpClient  tgbotapi.HTTPClient
	logger      *slog.Logger
	pollTimeout int
	maxInFlight int
}

type Option func(*options)

// WithAPIEndpoint overrides the Bot API endpoint format, e.g. for tests.
func WithAPIEndpoint(endpoint string) Option {
	return func(o *options) {
		if strings.TrimSpace(endpoint) != "" {
			o.endpoint = endpoint
		}
	}
}

func WithHTTPClient(c tgbotapi.HTTPClient) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPollTimeout sets the long-poll timeout in seconds.
func WithPollTimeout(seconds int) Option {
	return func(o *options) {
		if seconds > 0 {
			o.pollTimeout = seconds
		}
	}
}

// WithMaxInFlight bounds how many updates are routed at once while polling.
func WithMaxInFlight(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxInFlight = n
		}
	}
}

type Client struct {
	bot         *tgbotapi.BotAPI
	logger      *slog.Logger
	pollTimeout int
	maxInFlight int
}

var setLoggerOnce sync.Once

// New authenticates against the Bot API with token.
func New(token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram: token must not be empty")
	}
	o := options{
		endpoint:    tgbotapi.APIEndpoint,
		logger:      slog.Default(),
		pollTimeout: defaultPollTimeout,
		maxInFlight: defaultMaxInFlight,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = newDefaultHTTPClient(o.pollTimeout)
	}
	setLoggerOnce.Do(func() {
		_ = tgbotapi.SetLogger(&slogBotLogger{log: o.logger})
	})

	bot, err := tgbotapi.NewBotAPIWithClient(token, o.endpoint, o.httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	return &Client{
		bot:         bot,
		logger:      o.logger,
		pollTimeout: o.pollTimeout,
		maxInFlight: o.maxInFlight,
	}, nil
}

// SelfID is the bot's own user ID.
func (c *Client) SelfID() int64 {
	return c.bot.Self.ID
}

// Send delivers text to the chat identified by chatID. The Bot API call is
// not interruptible; ctx is only checked before sending.
func (c *Client) Send(ctx context.Context, chatID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", chatID, err)
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(id, text)); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

// ToInbound converts an update into an inbound message. ok is false for
// updates that carry no chat message.
func (c *Client) ToInbound(update tgbotapi.Update) (domain.InboundMessage, bool) {
	return ToInbound(update, c.bot.Self.ID)
}

// ToInbound converts an update into an inbound message for the bot with
// user ID selfID. The conversation is keyed by chat, and message IDs are
// qualified by chat because Telegram numbers messages per chat.
func ToInbound(update tgbotapi.Update, selfID int64) (domain.InboundMessage, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return domain.InboundMessage{}, false
	}
	text := msg.Text
	if strings.TrimSpace(text) == "" {
		text = msg.Caption
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	return domain.InboundMessage{
		SenderID:  chatID,
		MessageID: chatID + ":" + strconv.Itoa(msg.MessageID),
		Text:      text,
		Timestamp: time.Unix(int64(msg.Date), 0).UTC(),
		FromSelf:  msg.From != nil && (msg.From.IsBot || msg.From.ID == selfID),
	}, true
}

// Poll long-polls for updates and routes each message through handle until
// ctx is cancelled. Updates are dispatched concurrently; Poll returns after
// every dispatched handler has finished.
func (c *Client) Poll(ctx context.Context, handle HandlerFunc) error {
	if handle == nil {
		return errors.New("telegram: handler must not be nil")
	}
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = c.pollTimeout
	updates := c.bot.GetUpdatesChan(cfg)
	c.logger.Info("polling started", "bot", c.bot.Self.UserName, "timeout_seconds", c.pollTimeout)

	var g errgroup.Group
	g.SetLimit(c.maxInFlight)

	stop := func() {
		c.bot.StopReceivingUpdates()
		// Drain so the library's polling goroutine can finish and close the
		// channel.
		for range updates {
		}
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			_ = g.Wait()
			c.logger.Info("polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				_ = g.Wait()
				return errors.New("telegram: updates channel closed")
			}
			msg, ok := c.ToInbound(update)
			if !ok {
				continue
			}
			g.Go(func() error {
				handle(ctx, msg)
				return nil
			})
		}
	}
}

// newDefaultHTTPClient allows a long poll to complete before timing out.
func newDefaultHTTPClient(pollTimeout int) *http.Client {
	return &http.Client{Timeout: time.Duration(pollTimeout)*time.Second + 10*time.Second}
}

// slogBotLogger routes the Bot API library's log output through slog. The
// library reports failures with Println and debug traces with Printf.
type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...interface{}) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintln(v...)), "component", "telegram")
}

func (l *slogBotLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "telegram")
}
