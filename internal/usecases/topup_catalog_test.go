package usecases

import "testing"

func TestParseTopUpPackages_Default(t *testing.T) {
	packages, err := ParseTopUpPackages("")
	if err != nil {
		t.Fatalf("ParseTopUpPackages failed: %v", err)
	}
	if len(packages) != 7 {
		t.Fatalf("got %d packages, want 7", len(packages))
	}
	first := packages[0]
	if first.Generations != 2 || first.Price != "110 ₽" || first.URL != "https://t.me/tribute/app?startapp=ppf9" {
		t.Errorf("unexpected first package %+v", first)
	}
}

func TestParseTopUpPackages(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"single", "5:$3:https://pay.example/5", 1, false},
		{"trailing separator", "5:$3:https://pay.example/5;10:$5:https://pay.example/10;", 2, false},
		{"missing url", "5:$3", 0, true},
		{"bad count", "five:$3:https://pay.example", 0, true},
		{"zero count", "0:$3:https://pay.example", 0, true},
		{"not a url", "5:$3:pay.example", 0, true},
		{"only separators", ";;", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTopUpPackages(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("got %d packages, want %d", len(got), tt.want)
			}
		})
	}
}
