package usecases

import (
	"fmt"
	"strconv"
	"strings"

	"imagebot/internal/entities"
)

// DefaultTopUpPackages is the catalogue used when TOPUP_PACKAGES is empty.
const DefaultTopUpPackages = "2:110 ₽:https://t.me/tribute/app?startapp=ppf9;" +
	"5:260 ₽:https://t.me/tribute/app?startapp=ppgM;" +
	"10:490 ₽:https://t.me/tribute/app?startapp=ppgN;" +
	"30:1 350 ₽:https://t.me/tribute/app?startapp=ppgO;" +
	"80:3 600 ₽:https://t.me/tribute/app?startapp=ppha;" +
	"150:5 700 ₽:https://t.me/tribute/app?startapp=ppgQ;" +
	"200:7 400 ₽:https://t.me/tribute/app?startapp=ppgS"

// ParseTopUpPackages parses "count:price:url" entries separated by ';'.
// The URL may contain colons; count and price may not.
func ParseTopUpPackages(raw string) ([]entities.TopUpPackage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultTopUpPackages
	}

	var packages []entities.TopUpPackage
	for i, item := range strings.Split(raw, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("package %d: want count:price:url, got %q", i+1, item)
		}
		count, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil || count <= 0 {
			return nil, fmt.Errorf("package %d: invalid generation count %q", i+1, parts[0])
		}
		url := strings.TrimSpace(parts[2])
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return nil, fmt.Errorf("package %d: invalid url %q", i+1, url)
		}
		packages = append(packages, entities.TopUpPackage{
			Generations: count,
			Price:       strings.TrimSpace(parts[1]),
			URL:         url,
		})
	}
	if len(packages) == 0 {
		return nil, fmt.Errorf("no top-up packages configured")
	}
	return packages, nil
}
