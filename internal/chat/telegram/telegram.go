// Package telegram adapts the Telegram Bot API to chat.Messenger.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/taskmate/tmbot/internal/chat"
)

const maxDownloadBytes = 60 << 20

// Client implements chat.Messenger on top of a Bot API connection.
type Client struct {
	bot    *tgbotapi.BotAPI
	http   *http.Client
	logger *slog.Logger
}

var _ chat.Messenger = (*Client)(nil)

// New connects to the Bot API and verifies the token.
func New(token string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: 60 * time.Second}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	logger.Info("Telegram bot authorized", "username", bot.Self.UserName)
	return &Client{bot: bot, http: httpClient, logger: logger}, nil
}

// Send delivers a text or photo message with optional keyboards.
func (c *Client) Send(_ context.Context, chatID int64, msg chat.Message) (int, error) {
	var cfg tgbotapi.Chattable
	markup := replyMarkup(msg)

	if msg.Photo != nil {
		var file tgbotapi.RequestFileData
		if msg.Photo.URL != "" {
			file = tgbotapi.FileURL(msg.Photo.URL)
		} else {
			file = tgbotapi.FileBytes{Name: msg.Photo.Name, Bytes: msg.Photo.Data}
		}
		p := tgbotapi.NewPhoto(chatID, file)
		p.Caption = msg.Text
		p.ParseMode = tgbotapi.ModeHTML
		if markup != nil {
			p.ReplyMarkup = markup
		}
		cfg = p
	} else {
		m := tgbotapi.NewMessage(chatID, msg.Text)
		m.ParseMode = tgbotapi.ModeHTML
		m.DisableWebPagePreview = true
		if markup != nil {
			m.ReplyMarkup = markup
		}
		cfg = m
	}

	sent, err := c.bot.Send(cfg)
	if err != nil {
		return 0, fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// AnswerCallback stops the client-side spinner on a button.
func (c *Client) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	if _, err := c.bot.Request(cb); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// ClearButtons strips the inline keyboard so a tapped action cannot be
// repeated.
func (c *Client) ClearButtons(_ context.Context, chatID int64, messageID int) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := c.bot.Request(edit); err != nil {
		return fmt.Errorf("clear buttons: %w", err)
	}
	return nil
}

// Delete removes a message.
func (c *Client) Delete(_ context.Context, chatID int64, messageID int) error {
	if _, err := c.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// Download fetches an uploaded file through its direct URL.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	u, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return readLimited(resp.Body, maxDownloadBytes)
}

// readLimited reads r fully, failing instead of truncating when it holds
// more than limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d bytes", limit)
	}
	return data, nil
}

// Poll long-polls for updates and passes each to handle until ctx is done.
func (c *Client) Poll(ctx context.Context, handle func(chat.Update)) error {
	if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		c.logger.Warn("Failed to delete webhook before polling", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := c.bot.GetUpdatesChan(u)
	c.logger.Info("Polling for updates")

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			c.logger.Info("Update polling stopped", "reason", ctx.Err())
			return nil
		case upd, ok := <-updates:
			if !ok {
				return fmt.Errorf("update channel closed")
			}
			if cu, ok := convertUpdate(upd); ok {
				handle(cu)
			}
		}
	}
}

// SetWebhook registers url as the update endpoint.
func (c *Client) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	if _, err := c.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	c.logger.Info("Webhook registered", "url", url)
	return nil
}

// ParseWebhook decodes one webhook request. ok is false for update types
// the bot does not handle.
func (c *Client) ParseWebhook(r *http.Request) (upd chat.Update, ok bool, err error) {
	raw, err := c.bot.HandleUpdate(r)
	if err != nil {
		return chat.Update{}, false, err
	}
	upd, ok = convertUpdate(*raw)
	return upd, ok, nil
}

func convertUpdate(upd tgbotapi.Update) (chat.Update, bool) {
	if cq := upd.CallbackQuery; cq != nil {
		if cq.Message == nil || cq.Message.Chat == nil {
			return chat.Update{}, false
		}
		return chat.Update{
			ChatID:    cq.Message.Chat.ID,
			MessageID: cq.Message.MessageID,
			Callback: &chat.Callback{
				ID:        cq.ID,
				Data:      cq.Data,
				MessageID: cq.Message.MessageID,
			},
		}, true
	}

	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return chat.Update{}, false
	}
	out := chat.Update{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
	}

	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		out.Attachment = &chat.Attachment{
			Kind:     chat.AttachmentPhoto,
			FileID:   largest.FileID,
			FileName: fmt.Sprintf("photo_%d.jpg", msg.MessageID),
			MIMEType: "image/jpeg",
			Size:     int64(largest.FileSize),
		}
	case msg.Document != nil:
		out.Attachment = &chat.Attachment{
			Kind:     chat.AttachmentDocument,
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
			MIMEType: msg.Document.MimeType,
			Size:     int64(msg.Document.FileSize),
		}
	case msg.Video != nil:
		name := msg.Video.FileName
		if name == "" {
			name = fmt.Sprintf("video_%d.mp4", msg.MessageID)
		}
		out.Attachment = &chat.Attachment{
			Kind:     chat.AttachmentVideo,
			FileID:   msg.Video.FileID,
			FileName: name,
			MIMEType: msg.Video.MimeType,
			Size:     int64(msg.Video.FileSize),
		}
	}

	if out.Text == "" && out.Attachment == nil {
		return chat.Update{}, false
	}
	return out, true
}

func replyMarkup(msg chat.Message) any {
	switch {
	case len(msg.Inline) > 0:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(msg.Inline))
		for _, r := range msg.Inline {
			row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
			for _, b := range r {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
			rows = append(rows, row)
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	case len(msg.Menu) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(msg.Menu))
		for _, r := range msg.Menu {
			row := make([]tgbotapi.KeyboardButton, 0, len(r))
			for _, text := range r {
				row = append(row, tgbotapi.NewKeyboardButton(text))
			}
			rows = append(rows, row)
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.ResizeKeyboard = true
		return kb
	case msg.RemoveMenu:
		return tgbotapi.NewRemoveKeyboard(true)
	}
	return nil
}
