package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/GeorgiySurkov/multipinbot/summary"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "nil",
			err:  nil,
			want: nil,
		},
		{
			name: "rate limited",
			err:  &tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 5"},
			want: summary.ErrRateLimited,
		},
		{
			name: "pin rights",
			err:  &tgbotapi.Error{Code: 400, Message: "Bad Request: not enough rights to pin a message"},
			want: summary.ErrPermissionDenied,
		},
		{
			name: "edit target deleted",
			err:  &tgbotapi.Error{Code: 400, Message: "Bad Request: message to edit not found"},
			want: summary.ErrMessageNotFound,
		},
		{
			name: "member left",
			err:  &tgbotapi.Error{Code: 400, Message: "Bad Request: user not found"},
			want: summary.ErrMemberNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestMapErrorPassesThroughUnknown(t *testing.T) {
	plain := errors.New("connection reset")
	assert.Equal(t, plain, mapError(plain))

	api := &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}
	assert.Equal(t, error(api), mapError(api))
}
