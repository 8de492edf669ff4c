package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Client is the OpenAI-compatible implementation of Oracle.
type Client struct {
	client *openai.Client
	model  string
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *Client) SetModel(model string) {
	c.model = model
}

const parseSystemPrompt = `You are the reminder parser for a concierge assistant.

Given one user message, decide what to remind about and when to send it.

RULES:
1. The message may contain several time phrases. Pick the one that governs
   WHEN TO SEND the reminder, not a phrase that merely describes the event.
   "remind me in 5 minutes about my dentist appointment tomorrow" sends in
   5 minutes; "tomorrow" describes the appointment.
2. When the send time is a plain offset from now ("in 5 minutes", "in 2
   hours", "in 3 days"), emit exactly one of delta_minutes, delta_hours
   or delta_days and leave scheduled_datetime empty. For anything else
   ("tomorrow at 3pm", "March 15 at noon"), compute the instant from the
   provided current datetime and emit scheduled_datetime as a complete
   ISO-8601 instant with the user's UTC offset, e.g.
   "2025-10-25T15:00:00-04:00". Never output relative language in
   scheduled_datetime.
3. action is what to remind about, phrased from the user's point of view
   ("your dentist appointment tomorrow", "call John").
4. For reminders relative to a dated event ("2 weeks before her birthday"),
   use reminder_type "lead_time" with lead_time_days, name the event in
   date_item_title, and when the user states the event's date, set
   create_date_item true and date_value (YYYY-MM-DD).
5. If you cannot determine what or when, set needs_clarification true and
   ask one short, specific question.`

// parseSchema is the strict JSON schema for structured parse output.
var parseSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"action": {"type": "string", "description": "What to remind the user about"},
		"reminder_type": {"type": "string", "enum": ["scheduled", "lead_time"]},
		"scheduled_datetime": {"type": "string", "description": "ISO-8601 instant with UTC offset; for scheduled reminders that are not plain offsets from now"},
		"delta_minutes": {"type": "integer", "description": "Minutes from now, for requests like 'in 5 minutes'"},
		"delta_hours": {"type": "integer", "description": "Hours from now"},
		"delta_days": {"type": "integer", "description": "Days from now"},
		"lead_time_days": {"type": "integer", "description": "Days before the anchor date; required for lead_time"},
		"date_item_title": {"type": "string", "description": "Title of the dated event this reminder anchors to"},
		"create_date_item": {"type": "boolean", "description": "Whether the dated event should be created"},
		"date_value": {"type": "string", "description": "The event's date as YYYY-MM-DD, if stated"},
		"notes": {"type": "string"},
		"needs_clarification": {"type": "boolean"},
		"clarification_question": {"type": "string"}
	},
	"required": ["action", "reminder_type", "needs_clarification"],
	"additionalProperties": false
}`)

func (c *Client) ParseReminder(ctx context.Context, now time.Time, timezone, userText string) (*ParseResult, error) {
	userPrompt := fmt.Sprintf(
		"Current datetime: %s\nUser timezone: %s\n\nParse this reminder request:\n\n%q",
		now.Format(time.RFC3339), timezone, userText,
	)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: parseSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "reminder_parse",
				Schema: parseSchema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("call model: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from model")
	}

	return DecodeResult(resp.Choices[0].Message.Content)
}

func (c *Client) Render(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("call model: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	return resp.Choices[0].Message.Content, nil
}
