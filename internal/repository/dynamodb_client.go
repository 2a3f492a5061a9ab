package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"triage-bot/internal/domain"
)

const (
	skPrefixEvent = "EVT#"
	skMeta        = "META#"
	ttlDuration   = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client journals routing events to a DynamoDB table for the human team.
// Routing never reads the journal back.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// chatPK returns the DynamoDB partition key for a conversation.
func chatPK(conversationID string) string {
	return "CHAT#" + conversationID
}

// eventSK orders events chronologically; kind breaks ties within a timestamp.
func eventSK(ts time.Time, kind domain.FollowUpKind) string {
	return skPrefixEvent + ts.UTC().Format(time.RFC3339Nano) + "#" + string(kind)
}

func ttlValue(from time.Time) int64 {
	return from.Add(ttlDuration).Unix()
}

// NewFollowUpEvent fills the storage keys and TTL of ev.
func NewFollowUpEvent(ev domain.FollowUpEvent) domain.FollowUpEvent {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	ev.At = ev.At.UTC()
	ev.PK = chatPK(ev.ConversationID)
	ev.SK = eventSK(ev.At, ev.Kind)
	ev.TTL = ttlValue(ev.At)
	return ev
}

// RecordEvent writes the event and the conversation summary in one
// transaction. An event with the same key is rejected.
func (c *Client) RecordEvent(ctx context.Context, ev domain.FollowUpEvent) error {
	if strings.TrimSpace(ev.ConversationID) == "" {
		return errors.New("repository: RecordEvent: conversation ID is required")
	}
	if ev.Kind == "" {
		return errors.New("repository: RecordEvent: kind is required")
	}
	ev = NewFollowUpEvent(ev)

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                eventItem(ev),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      summaryItem(ev),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: RecordEvent: %w", err)
	}
	return nil
}

// ListEvents returns up to limit of the most recent events for a conversation
// in chronological order.
func (c *Client) ListEvents(ctx context.Context, conversationID string, limit int) ([]domain.FollowUpEvent, error) {
	if limit <= 0 {
		return nil, errors.New("repository: ListEvents: limit must be positive")
	}
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: chatPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixEvent},
		},
		// Read newest first so LIMIT keeps the most recent events.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: ListEvents query: %w", err)
	}

	events := make([]domain.FollowUpEvent, 0, len(out.Items))
	for _, item := range out.Items {
		ev, err := itemToEvent(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListEvents unmarshal: %w", err)
		}
		events = append(events, ev)
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// GetSummary returns the latest journaled state of a conversation. found is
// false when nothing was recorded.
func (c *Client) GetSummary(ctx context.Context, conversationID string) (summary domain.FollowUpSummary, found bool, err error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: chatPK(conversationID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.FollowUpSummary{}, false, fmt.Errorf("repository: GetSummary get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.FollowUpSummary{}, false, nil
	}

	summary, err = itemToSummary(out.Item)
	if err != nil {
		return domain.FollowUpSummary{}, false, fmt.Errorf("repository: GetSummary decode: %w", err)
	}
	return summary, true, nil
}

func eventItem(ev domain.FollowUpEvent) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: ev.PK},
		"SK":             &types.AttributeValueMemberS{Value: ev.SK},
		"conversationId": &types.AttributeValueMemberS{Value: ev.ConversationID},
		"kind":           &types.AttributeValueMemberS{Value: string(ev.Kind)},
		"messageId":      &types.AttributeValueMemberS{Value: ev.MessageID},
		"text":           &types.AttributeValueMemberS{Value: ev.Text},
		"answer":         &types.AttributeValueMemberS{Value: ev.Answer},
		"at":             &types.AttributeValueMemberS{Value: ev.At.Format(time.RFC3339Nano)},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(ev.TTL, 10)},
	}
}

func summaryItem(ev domain.FollowUpEvent) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: ev.PK},
		"SK":             &types.AttributeValueMemberS{Value: skMeta},
		"conversationId": &types.AttributeValueMemberS{Value: ev.ConversationID},
		"lastKind":       &types.AttributeValueMemberS{Value: string(ev.Kind)},
		"lastMessageId":  &types.AttributeValueMemberS{Value: ev.MessageID},
		"lastActivity":   &types.AttributeValueMemberS{Value: ev.At.Format(time.RFC3339Nano)},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(ev.TTL, 10)},
	}
}

func itemToEvent(item map[string]types.AttributeValue) (domain.FollowUpEvent, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.FollowUpEvent{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.FollowUpEvent{}, err
	}
	kind, err := strAttr(item, "kind")
	if err != nil {
		return domain.FollowUpEvent{}, err
	}
	at, err := timeAttr(item, "at")
	if err != nil {
		return domain.FollowUpEvent{}, err
	}
	conversationID, _ := strAttr(item, "conversationId") // allow empty
	messageID, _ := strAttr(item, "messageId")
	text, _ := strAttr(item, "text")
	answer, _ := strAttr(item, "answer")

	return domain.FollowUpEvent{
		PK:             pk,
		SK:             sk,
		ConversationID: conversationID,
		Kind:           domain.FollowUpKind(kind),
		MessageID:      messageID,
		Text:           text,
		Answer:         answer,
		At:             at,
	}, nil
}

func itemToSummary(item map[string]types.AttributeValue) (domain.FollowUpSummary, error) {
	kind, err := strAttr(item, "lastKind")
	if err != nil {
		return domain.FollowUpSummary{}, err
	}
	last, err := timeAttr(item, "lastActivity")
	if err != nil {
		return domain.FollowUpSummary{}, err
	}
	conversationID, _ := strAttr(item, "conversationId")
	messageID, _ := strAttr(item, "lastMessageId")
	return domain.FollowUpSummary{
		ConversationID: conversationID,
		LastKind:       domain.FollowUpKind(kind),
		LastMessageID:  messageID,
		LastActivity:   last,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func timeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return t, nil
}
