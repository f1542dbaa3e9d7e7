package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alphachat/client/gateway"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "context deadline",
			err:  context.DeadlineExceeded,
			want: MsgTimeout,
		},
		{
			name: "client timeout",
			err:  errors.New("Post \"http://localhost:5000/api/drivebot/chat\": net/http: request canceled (Client.Timeout exceeded while awaiting headers)"),
			want: MsgTimeout,
		},
		{
			name: "dns failure reads as offline",
			err:  errors.New("dial tcp: lookup backend.local: no such host"),
			want: MsgOffline,
		},
		{
			name: "unreachable network reads as offline",
			err:  errors.New("dial tcp 10.0.0.1:5000: connect: network is unreachable"),
			want: MsgOffline,
		},
		{
			name: "connection refused",
			err:  errors.New("dial tcp 127.0.0.1:5000: connect: connection refused"),
			want: MsgUnavailable,
		},
		{
			name: "bad gateway",
			err:  &gateway.APIError{StatusCode: 502},
			want: MsgUnavailable,
		},
		{
			name: "service unavailable",
			err:  &gateway.APIError{StatusCode: 503, Message: "maintenance"},
			want: MsgUnavailable,
		},
		{
			name: "rate limited",
			err:  &gateway.APIError{StatusCode: 429, Message: "too many requests"},
			want: MsgRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// Carries both a timeout and a refused-connection fingerprint; timeout
	// is earlier in the table and must win.
	err := errors.New("timeout after retry: connection refused")
	if got := Classify(err); got != MsgTimeout {
		t.Errorf("expected timeout classification to win, got %q", got)
	}
}

func TestClassify_UnknownFallsBackWithRawError(t *testing.T) {
	err := errors.New("unexpected end of JSON input")
	got := Classify(err)

	if !strings.HasPrefix(got, "Desculpe, ocorreu um erro") {
		t.Errorf("fallback must keep the localized prefix, got %q", got)
	}
	if !strings.Contains(got, "unexpected end of JSON input") {
		t.Errorf("fallback must embed the raw error, got %q", got)
	}
}
