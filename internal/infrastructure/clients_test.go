package infrastructure

import (
	"bytes"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeTelegramAPI struct {
	sent []tgbotapi.Chattable
}

func (f *fakeTelegramAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeTelegramAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.sent = append(f.sent, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegramAPI) GetFileDirectURL(fileID string) (string, error) {
	return "https://api.telegram.org/file/bot/" + fileID, nil
}

func TestTelegramClient_SendPhotoURL(t *testing.T) {
	api := &fakeTelegramAPI{}
	client := NewTelegramClient(api)

	if err := client.SendPhotoURL(42, "https://img/1.jpg", "done"); err != nil {
		t.Fatalf("SendPhotoURL failed: %v", err)
	}
	photo, ok := api.sent[0].(tgbotapi.PhotoConfig)
	if !ok {
		t.Fatalf("sent %T, want PhotoConfig", api.sent[0])
	}
	if photo.ChatID != 42 || photo.Caption != "done" {
		t.Errorf("unexpected photo config: %+v", photo)
	}
	if photo.File != tgbotapi.FileURL("https://img/1.jpg") {
		t.Errorf("photo file = %v", photo.File)
	}
}

func TestTelegramClient_SendQRCode(t *testing.T) {
	api := &fakeTelegramAPI{}
	client := NewTelegramClient(api)

	if err := client.SendQRCode(42, "https://pay.example/50", "50 generations"); err != nil {
		t.Fatalf("SendQRCode failed: %v", err)
	}
	photo := api.sent[0].(tgbotapi.PhotoConfig)
	file, ok := photo.File.(tgbotapi.FileBytes)
	if !ok {
		t.Fatalf("photo file is %T, want FileBytes", photo.File)
	}
	if !bytes.HasPrefix(file.Bytes, []byte("\x89PNG")) {
		t.Error("QR code is not a PNG")
	}
}
