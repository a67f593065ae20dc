package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

const DefaultAPIURL = "https://api.telegram.org"

// APIError is a Bot API answer with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed: %d %s", e.Method, e.Code, e.Description)
}

// Unwrap classifies client errors (bad markup, blocked chat) as permanent
// so the caller does not retry them. 429 and 5xx stay retryable.
func (e *APIError) Unwrap() error {
	if e.Code == http.StatusBadRequest || e.Code == http.StatusForbidden {
		return domain.ErrDeliveryRejected
	}
	return nil
}

// Client talks to the Telegram Bot API over HTTPS. It implements app.Transport.
type Client struct {
	logger         *slog.Logger
	httpClient     *http.Client
	baseURL        string
	token          string
	requestTimeout time.Duration
}

// NewClient creates a Bot API client. httpClient may be nil; requests are
// bounded by per-call contexts rather than a client-wide timeout because
// getUpdates holds the connection open for the poll duration.
func NewClient(logger *slog.Logger, apiURL, token string, requestTimeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	return &Client{
		logger:         logger.With("transport", "telegram"),
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(apiURL, "/"),
		token:          token,
		requestTimeout: requestTimeout,
	}
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]domain.Update, error) {
	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout / time.Second),
		AllowedUpdates: []string{"message", "callback_query"},
	}

	var raw []update
	if err := c.call(ctx, "getUpdates", req, timeout+c.requestTimeout, &raw); err != nil {
		return nil, err
	}

	updates := make([]domain.Update, 0, len(raw))
	for _, u := range raw {
		updates = append(updates, toDomainUpdate(u))
	}
	return updates, nil
}

// SendMessage sends an HTML message with an optional inline keyboard.
func (c *Client) SendMessage(ctx context.Context, msg domain.OutboundMessage) error {
	req := sendMessageRequest{
		ChatID:    int64(msg.ChatID),
		Text:      msg.Text,
		ParseMode: "HTML",
	}
	if len(msg.Keyboard) > 0 {
		req.ReplyMarkup = toInlineKeyboard(msg.Keyboard)
	}
	return c.call(ctx, "sendMessage", req, c.requestTimeout, nil)
}

// AnswerCallback clears the button's loading indicator, optionally with a toast.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	req := answerCallbackQueryRequest{CallbackQueryID: callbackID, Text: text}
	return c.call(ctx, "answerCallbackQuery", req, c.requestTimeout, nil)
}

func (c *Client) call(ctx context.Context, method string, payload any, timeout time.Duration, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// The URL carries the bot token; keep it out of the error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram %s request failed: %w", method, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response (status %d): %w", method, httpResp.StatusCode, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		c.logger.WarnContext(ctx, "Unparseable Bot API response", "method", method, "status_code", httpResp.StatusCode, "error", err)
		return fmt.Errorf("failed to decode %s response (status %d): %w", method, httpResp.StatusCode, err)
	}
	if !envelope.OK {
		code := envelope.ErrorCode
		if code == 0 {
			code = httpResp.StatusCode
		}
		return &APIError{Method: method, Code: code, Description: envelope.Description}
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

func toDomainUpdate(u update) domain.Update {
	out := domain.Update{ID: u.UpdateID}
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		chatID := cq.From.ID
		if cq.Message != nil {
			chatID = cq.Message.Chat.ID
		}
		out.Callback = &domain.CallbackPress{
			ChatID:     domain.ChatID(chatID),
			Token:      cq.Data,
			CallbackID: cq.ID,
		}
	case u.Message != nil:
		out.Message = &domain.IncomingMessage{
			ChatID: domain.ChatID(u.Message.Chat.ID),
			Text:   u.Message.Text,
		}
	}
	return out
}

func toInlineKeyboard(kb domain.Keyboard) *inlineKeyboardMarkup {
	rows := make([][]inlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]inlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, inlineKeyboardButton{Text: b.Label, CallbackData: b.Token})
		}
		rows = append(rows, buttons)
	}
	return &inlineKeyboardMarkup{InlineKeyboard: rows}
}
