package strcase

import "testing"

func TestToLowerSnake(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":           "",
		"Email":      "email",
		"AccountID":  "account_id",
		"HTTPServer": "http_server",
		"ChannelID":  "channel_id",
		"OTP2Code":   "otp2_code",
		"already_ok": "already_ok",
	}

	for in, want := range tests {
		if got := ToLowerSnake(in); got != want {
			t.Fatalf("ToLowerSnake(%q) = %q, want %q", in, got, want)
		}
	}
}
