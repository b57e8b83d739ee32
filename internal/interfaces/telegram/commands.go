package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"imagebot/internal/entities"
)

var errUsage = errors.New("usage")

// parseAdjustArgs reads "<telegram_id> <amount>".
func parseAdjustArgs(args string) (int64, int64, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return 0, 0, errUsage
	}
	userID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, 0, fmt.Errorf("invalid telegram id %q", fields[0])
	}
	amount, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || amount <= 0 {
		return 0, 0, fmt.Errorf("invalid amount %q", fields[1])
	}
	return userID, amount, nil
}

// parseRatioCallback splits "ratio:<mode>:<w>:<h>".
func parseRatioCallback(data string) (entities.GenerationMode, string, bool) {
	rest, ok := strings.CutPrefix(data, cbRatioPrefix)
	if !ok {
		return "", "", false
	}
	mode, ratio, ok := strings.Cut(rest, ":")
	if !ok {
		return "", "", false
	}
	switch entities.GenerationMode(mode) {
	case entities.ModeTxt2Img, entities.ModeImg2Img:
		return entities.GenerationMode(mode), ratio, true
	}
	return "", "", false
}

func formatUserList(users []entities.User) string {
	if len(users) == 0 {
		return "👀 No users yet."
	}
	var b strings.Builder
	b.WriteString("👥 Users:\n\n")
	for _, u := range users {
		name := u.DisplayName
		if name == "" {
			name = "no username"
		}
		fmt.Fprintf(&b, "🆔 %d\n👤 @%s\n🍌 Balance: %d\n\n", u.ID, name, u.PaidBalance)
	}
	text := b.String()
	if len(text) > 4000 {
		text = strings.ToValidUTF8(text[:4000], "")
	}
	return text
}

func formatBalance(freeLeft int, balance int64) string {
	return fmt.Sprintf("💰 Your balance\n\n🆓 Free today: %d\n🍌 Paid generations: %d\n\nPick a package to top up:", freeLeft, balance)
}
