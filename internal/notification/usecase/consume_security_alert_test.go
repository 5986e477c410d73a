package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/gostepup/internal/pkg/config"
	"github.com/shandysiswandi/gostepup/internal/pkg/instrument"
	"github.com/shandysiswandi/gostepup/internal/pkg/telegram"
	"github.com/shandysiswandi/gostepup/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	channelID, text string
}

type fakeChannel struct {
	sent []sent
	err  error
}

func (c *fakeChannel) Send(_ context.Context, channelID, text string) error {
	c.sent = append(c.sent, sent{channelID: channelID, text: text})
	return c.err
}

type staticConfig struct {
	config.Config
	timezone string
}

func (c staticConfig) GetString(key string) string {
	if key == "modules.notification.timezone" {
		return c.timezone
	}
	return ""
}

func newTestUsecase(t *testing.T, ch *fakeChannel, timezone string) *Usecase {
	t.Helper()

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	return NewNotification(Dependency{
		Channel:    ch,
		Config:     staticConfig{timezone: timezone},
		Validator:  v,
		Instrument: instrument.NewNoop(),
	})
}

func TestUsecase_ConsumeSecurityAlert(t *testing.T) {
	t.Parallel()

	occurred := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	in := ConsumeSecurityAlertInput{AccountID: 42, ChannelID: "chan-77", OccurredAt: occurred}
	wantText := "SECURITY ALERT: Someone attempted to login to your account\n" +
		"Time: 2026-03-01 09:00:00 UTC\n" +
		"If this wasn't you, please secure your account immediately."

	tests := []struct {
		name     string
		in       ConsumeSecurityAlertInput
		timezone string
		sendErr  error
		wantErr  bool
		wantSent []sent
	}{
		{
			name:     "delivered",
			in:       in,
			wantSent: []sent{{channelID: "chan-77", text: wantText}},
		},
		{
			name:     "invalid timezone falls back to utc",
			in:       in,
			timezone: "Mars/Olympus",
			wantSent: []sent{{channelID: "chan-77", text: wantText}},
		},
		{
			name:     "transient failure is redelivered",
			in:       in,
			sendErr:  errors.New("telegram: send message: 502"),
			wantErr:  true,
			wantSent: []sent{{channelID: "chan-77", text: wantText}},
		},
		{
			name:     "disabled bot is dropped",
			in:       in,
			sendErr:  telegram.ErrDisabled,
			wantSent: []sent{{channelID: "chan-77", text: wantText}},
		},
		{
			name: "missing channel is dropped",
			in:   ConsumeSecurityAlertInput{AccountID: 42, OccurredAt: occurred},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ch := &fakeChannel{err: tt.sendErr}
			uc := newTestUsecase(t, ch, tt.timezone)

			// Act
			err := uc.ConsumeSecurityAlert(context.Background(), tt.in)

			// Assert
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantSent, ch.sent)
		})
	}
}
