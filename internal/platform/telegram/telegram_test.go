package telegram

import (
	"testing"
)

func TestBuildRecipientNormalizes(t *testing.T) {
	t.Parallel()
	a := New()

	tests := []struct {
		name string
		data any
		want string
		ok   bool
	}{
		{name: "chat id string", data: "123456", want: "123456", ok: true},
		{name: "channel username", data: "@announcements", want: "@announcements", ok: true},
		{name: "json number", data: float64(987), want: "987", ok: true},
		{name: "record", data: map[string]any{"chat_id": float64(42)}, want: "42", ok: true},
		{name: "empty string", data: ""},
		{name: "record without chat id", data: map[string]any{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			u, err := a.BuildRecipient(tt.data)
			if !tt.ok {
				if err == nil {
					t.Fatalf("BuildRecipient(%v) succeeded, want error", tt.data)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildRecipient(%v) error: %v", tt.data, err)
			}
			if u.ID() != tt.want {
				t.Fatalf("ID = %q, want %q", u.ID(), tt.want)
			}
		})
	}
}

func TestBuildSenderRequiresToken(t *testing.T) {
	t.Parallel()
	a := New()
	if _, err := a.BuildSender(map[string]any{"token": "  "}); err == nil {
		t.Fatal("expected error for blank token")
	}
	if _, err := a.BuildSender(map[string]any{}); err == nil {
		t.Fatal("expected error for missing token")
	}
}
