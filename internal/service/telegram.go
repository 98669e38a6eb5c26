package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// TelegramClient sends reminder messages via the Telegram Bot API.
//
// How it works:
// 1. The user opens a chat with the bot and obtains their chat ID
// 2. They link the chat ID through the config endpoint (we store it in
//    user_configs)
// 3. The reminder daemon POSTs to the Bot API sendMessage endpoint whenever
//    a dose enters its reminder window
type TelegramClient struct {
	botToken   string
	httpClient *http.Client
}

// telegramMessage is the payload for the Bot API sendMessage method.
type telegramMessage struct {
	ChatID      string                `json:"chat_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *inlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

// telegramResponse is the envelope every Bot API method returns.
type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

const telegramAPIBase = "https://api.telegram.org/bot"

// NewTelegramClient creates a Telegram Bot API client.
// An empty token disables sending; every send reports failure.
func NewTelegramClient(botToken string) *TelegramClient {
	return &TelegramClient{
		botToken: botToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Configured reports whether a bot token is present.
func (c *TelegramClient) Configured() bool {
	return c.botToken != ""
}

// SendDoseReminder sends the main reminder for a dose that is due now,
// with an inline button the user can tap to confirm.
func (c *TelegramClient) SendDoseReminder(chatID, medicationName string, scheduledTime time.Time, doseID uuid.UUID) error {
	text := fmt.Sprintf(
		"⏰ <b>Time for your medication</b>\n\n\U0001F48A %s\n\U0001F552 Scheduled for %s",
		medicationName, scheduledTime.UTC().Format("15:04"),
	)
	keyboard := &inlineKeyboardMarkup{
		InlineKeyboard: [][]inlineKeyboardButton{{
			{Text: "✅ Taken", CallbackData: "confirm:" + doseID.String()},
		}},
	}
	return c.send(chatID, text, keyboard)
}

// SendAdvanceReminder sends the heads-up message a few minutes before a dose.
func (c *TelegramClient) SendAdvanceReminder(chatID, medicationName string, scheduledTime time.Time) error {
	text := fmt.Sprintf(
		"⏳ <b>Upcoming dose</b>\n\n\U0001F48A %s\n\U0001F552 Due at %s",
		medicationName, scheduledTime.UTC().Format("15:04"),
	)
	return c.send(chatID, text, nil)
}

// SendMissedAlert tells the user a dose crossed the grace deadline without a
// confirmation. The dose can still be confirmed late from the app.
func (c *TelegramClient) SendMissedAlert(chatID, medicationName string, scheduledTime time.Time) error {
	text := fmt.Sprintf(
		"❌ <b>Missed dose</b>\n\n\U0001F48A %s\n\U0001F552 Was scheduled for %s\n\nYou can still confirm it as taken late.",
		medicationName, scheduledTime.UTC().Format("15:04"),
	)
	return c.send(chatID, text, nil)
}

// SendWelcome confirms a successful chat link.
func (c *TelegramClient) SendWelcome(chatID string) error {
	text := "✅ <b>Telegram linked</b>\n\nYou will receive your medication reminders in this chat."
	return c.send(chatID, text, nil)
}

// SendTestMessage lets the user verify their link from the config screen.
func (c *TelegramClient) SendTestMessage(chatID string) error {
	text := "\U0001F514 Test reminder. Your notifications are working."
	return c.send(chatID, text, nil)
}

// VerifyToken calls getMe to check the bot token is valid.
// Useful at daemon startup to fail fast on a bad token.
func (c *TelegramClient) VerifyToken() error {
	if c.botToken == "" {
		return fmt.Errorf("telegram bot token not configured")
	}

	resp, err := c.httpClient.Get(telegramAPIBase + c.botToken + "/getMe")
	if err != nil {
		return fmt.Errorf("getMe request: %w", err)
	}
	defer resp.Body.Close()

	var apiResp telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("decode getMe response: %w", err)
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram getMe failed: %s", apiResp.Description)
	}

	log.Printf("[Telegram] Bot token verified")
	return nil
}

// send POSTs a sendMessage call to the Bot API.
func (c *TelegramClient) send(chatID, text string, keyboard *inlineKeyboardMarkup) error {
	if c.botToken == "" {
		return fmt.Errorf("telegram bot token not configured")
	}
	if chatID == "" {
		return fmt.Errorf("empty chat id")
	}

	message := telegramMessage{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: keyboard,
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	resp, err := c.httpClient.Post(
		telegramAPIBase+c.botToken+"/sendMessage",
		"application/json",
		bytes.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var apiResp telegramResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf("decode response: status=%d body=%s", resp.StatusCode, string(respBody))
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram api error: code=%d desc=%s", apiResp.ErrorCode, apiResp.Description)
	}

	log.Printf("[Telegram] Message sent: chat=%s", chatID)
	return nil
}
