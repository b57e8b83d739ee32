package telegram

import (
	"fmt"

	"imagebot/internal/entities"
	"imagebot/internal/usecases"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbModePrefix  = "mode:"
	cbRatioPrefix = "ratio:"
	cbPackage     = "pkg:"
	cbBalance     = "balance"
	cbMenu        = "menu"
)

var ratioLabels = map[string]string{
	"1:1":  "1:1 (square)",
	"16:9": "16:9 (widescreen)",
	"9:16": "9:16 (portrait)",
}

// MainMenuKeyboard offers the two modes and the top-up screen
func MainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🖼️ Create from scratch", cbModePrefix+string(entities.ModeTxt2Img)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📷 Edit your photo", cbModePrefix+string(entities.ModeImg2Img)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💰 Get generations", cbBalance),
		),
	)
}

// RatioKeyboard lists supported aspect ratios for the given mode
func RatioKeyboard(mode entities.GenerationMode) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, ratio := range usecases.SupportedAspectRatios {
		label, ok := ratioLabels[ratio]
		if !ok {
			label = ratio
		}
		data := cbRatioPrefix + string(mode) + ":" + ratio
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, data)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("↩️ Back", cbMenu)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// PackagesKeyboard shows one button per top-up package, two per row
func PackagesKeyboard(packages []entities.TopUpPackage) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for i, p := range packages {
		label := fmt.Sprintf("%d 🍌 · %s", p.Generations, p.Price)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", cbPackage, i)))
		if (i+1)%2 == 0 {
			rows = append(rows, row)
			row = []tgbotapi.InlineKeyboardButton{}
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("↩️ Back to menu", cbMenu)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
