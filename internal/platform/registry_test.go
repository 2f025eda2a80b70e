package platform

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type stubUser struct{ id string }

func (u stubUser) ID() string { return u.id }

type stubClient struct{ stubUser }

func (stubClient) Send(ctx context.Context, to User, content string) error { return nil }
func (stubClient) Close() error                                            { return nil }

type stubPlatform struct{ name string }

func (p stubPlatform) Name() string                        { return p.name }
func (p stubPlatform) BuildSender(any) (ClientUser, error) { return stubClient{}, nil }
func (p stubPlatform) BuildRecipient(any) (User, error)    { return stubUser{}, nil }

func TestRegistryResolve(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.Register("email", func() Platform { return stubPlatform{name: "email"} })

	tests := []struct {
		name  string
		query string
		ok    bool
	}{
		{name: "exact", query: "email", ok: true},
		{name: "case insensitive", query: "EMAIL", ok: true},
		{name: "trimmed", query: " email ", ok: true},
		{name: "unknown", query: "fax", ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctor, err := reg.Resolve(tt.query)
			if tt.ok {
				if err != nil {
					t.Fatalf("Resolve(%q) error: %v", tt.query, err)
				}
				if got := ctor().Name(); got != "email" {
					t.Fatalf("constructed platform %q, want email", got)
				}
				return
			}
			if !errors.Is(err, ErrUnknownPlatform) {
				t.Fatalf("Resolve(%q) error = %v, want ErrUnknownPlatform", tt.query, err)
			}
		})
	}
}

func TestRegistryNames(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	for _, n := range []string{"slack", "email", "telegram"} {
		n := n
		reg.Register(n, func() Platform { return stubPlatform{name: n} })
	}
	want := []string{"email", "slack", "telegram"}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}
}

func TestDecodeDataRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	var out struct {
		Address string `json:"address"`
	}
	if err := DecodeData(map[string]any{"address": "a@x.com"}, &out); err != nil {
		t.Fatalf("DecodeData error: %v", err)
	}
	if out.Address != "a@x.com" {
		t.Fatalf("Address = %q", out.Address)
	}
	if err := DecodeData(map[string]any{"adress": "typo"}, &out); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
