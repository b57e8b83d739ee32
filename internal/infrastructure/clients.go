package infrastructure

import (
	"fmt"

	"imagebot/internal/interfaces"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/skip2/go-qrcode"
)

// TelegramAPI is the subset of *tgbotapi.BotAPI the client needs.
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type TelegramClient struct {
	Bot TelegramAPI
}

var _ interfaces.Messenger = (*TelegramClient)(nil)

func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return bot, nil
}

func NewTelegramClient(bot TelegramAPI) *TelegramClient {
	return &TelegramClient{Bot: bot}
}

func (t *TelegramClient) SendMessage(chatID int64, content string) error {
	msg := tgbotapi.NewMessage(chatID, content)
	_, err := t.Bot.Send(msg)
	return err
}

// SendMessageWithMenu sends message with inline keyboard menu
func (t *TelegramClient) SendMessageWithMenu(chatID int64, content string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, content)
	msg.ReplyMarkup = keyboard
	_, err := t.Bot.Send(msg)
	return err
}

// SendPhotoURL lets Telegram fetch the picture from the generator's URL.
func (t *TelegramClient) SendPhotoURL(chatID int64, photoURL, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	photo.Caption = caption
	_, err := t.Bot.Send(photo)
	return err
}

// SendQRCode renders content as a PNG QR code and sends it as a photo.
func (t *TelegramClient) SendQRCode(chatID int64, content, caption string) error {
	png, err := qrcode.Encode(content, qrcode.Medium, 512)
	if err != nil {
		return fmt.Errorf("encode qr code: %w", err)
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "payment.png", Bytes: png})
	photo.Caption = caption
	_, err = t.Bot.Send(photo)
	return err
}

// AnswerCallback acknowledges a button press.
func (t *TelegramClient) AnswerCallback(callbackID, text string) error {
	_, err := t.Bot.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

// FileURL resolves a Telegram file id to a URL the generator can download.
func (t *TelegramClient) FileURL(fileID string) (string, error) {
	url, err := t.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolve telegram file: %w", err)
	}
	return url, nil
}
