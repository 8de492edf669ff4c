// Package delivery renders due reminders into message text and sends them
// over the channel the rule's comm identity names.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Adapter sends one rendered message to one channel address.
type Adapter interface {
	Send(ctx context.Context, address, message string) error
}

// TelegramAdapter delivers over a Telegram bot; the address is the chat ID.
type TelegramAdapter struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramAdapter(bot *tgbotapi.BotAPI) *TelegramAdapter {
	return &TelegramAdapter{bot: bot}
}

func (a *TelegramAdapter) Send(_ context.Context, address, message string) error {
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return fmt.Errorf("chat address %q is not a chat ID: %w", address, err)
	}

	if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, message)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// EmailAdapter delivers over plain SMTP.
type EmailAdapter struct {
	addr string // host:port
	from string
	auth smtp.Auth
}

func NewEmailAdapter(host string, port int, from, user, password string) *EmailAdapter {
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, password, host)
	}
	return &EmailAdapter{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
		auth: auth,
	}
}

func (a *EmailAdapter) Send(_ context.Context, address, message string) error {
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Reminder\r\n\r\n%s\r\n",
		a.from, address, message)
	if err := smtp.SendMail(a.addr, a.auth, a.from, []string{address}, []byte(body)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// SMSAdapter posts to an HTTP SMS gateway; the address is the phone number.
type SMSAdapter struct {
	gatewayURL string
	apiKey     string
	client     *http.Client
}

func NewSMSAdapter(gatewayURL, apiKey string) *SMSAdapter {
	return &SMSAdapter{
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		client:     http.DefaultClient,
	}
}

func (a *SMSAdapter) Send(ctx context.Context, address, message string) error {
	payload, err := json.Marshal(map[string]string{
		"to":   address,
		"body": message,
	})
	if err != nil {
		return fmt.Errorf("encode sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %s", resp.Status)
	}
	return nil
}
