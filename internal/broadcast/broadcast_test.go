package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"massmsg/internal/platform"
	"massmsg/pkg/logx"
)

type fakeUser struct{ id string }

func (u fakeUser) ID() string { return u.id }

type sentMsg struct {
	recipient string
	content   string
}

type fakeSender struct {
	fakeUser

	mu      sync.Mutex
	sent    []sentMsg
	failFor map[string]error
	closed  bool
}

func (s *fakeSender) Send(ctx context.Context, to platform.User, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[to.ID()]; ok {
		return err
	}
	s.sent = append(s.sent, sentMsg{recipient: to.ID(), content: content})
	return nil
}

func (s *fakeSender) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSender) sentTo() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.sent))
	for _, m := range s.sent {
		out[m.recipient] = m.content
	}
	return out
}

type fakePlatform struct {
	name      string
	sender    *fakeSender
	senderErr error

	mu          sync.Mutex
	senderCalls int
}

func (p *fakePlatform) Name() string { return p.name }

func (p *fakePlatform) BuildSender(data any) (platform.ClientUser, error) {
	p.mu.Lock()
	p.senderCalls++
	p.mu.Unlock()
	if p.senderErr != nil {
		return nil, p.senderErr
	}
	return p.sender, nil
}

func (p *fakePlatform) BuildRecipient(data any) (platform.User, error) {
	switch v := data.(type) {
	case string:
		return fakeUser{id: v}, nil
	default:
		return nil, fmt.Errorf("unsupported recipient data %T", data)
	}
}

func newFakeRegistry(p *fakePlatform) *platform.Registry {
	reg := platform.NewRegistry()
	reg.Register(p.name, func() platform.Platform { return p })
	return reg
}

func recipientsData(ids ...string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func TestSendToAllPlain(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{fakeUser: fakeUser{id: "ops@x.com"}}
	plat := &fakePlatform{name: "email", sender: sender}
	d := New(newFakeRegistry(plat), Config{}, logx.Nop())

	res, err := d.SendToAll(context.Background(), Job{
		Platform:   "email",
		Sender:     map[string]any{"address": "ops@x.com"},
		Recipients: recipientsData("a@x.com", "b@x.com"),
		Content:    "Hello",
	})
	if err != nil {
		t.Fatalf("SendToAll error: %v", err)
	}
	if res.Total != 2 || res.Sent != 2 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	got := sender.sentTo()
	for _, r := range []string{"a@x.com", "b@x.com"} {
		if got[r] != "Hello" {
			t.Fatalf("recipient %s got %q, want %q", r, got[r], "Hello")
		}
	}
	if !sender.closed {
		t.Fatal("sender was not closed after the run")
	}
}

func TestSendToAllUnknownPlatform(t *testing.T) {
	t.Parallel()
	plat := &fakePlatform{name: "email", sender: &fakeSender{}}
	d := New(newFakeRegistry(plat), Config{}, logx.Nop())

	_, err := d.SendToAll(context.Background(), Job{Platform: "carrier-pigeon", Sender: "x"})
	if !errors.Is(err, platform.ErrUnknownPlatform) {
		t.Fatalf("error = %v, want ErrUnknownPlatform", err)
	}
	if plat.senderCalls != 0 {
		t.Fatal("sender was constructed for an unknown platform")
	}
}

func TestSendToAllMissingSender(t *testing.T) {
	t.Parallel()
	plat := &fakePlatform{name: "email", sender: &fakeSender{}}
	d := New(newFakeRegistry(plat), Config{}, logx.Nop())

	_, err := d.SendToAll(context.Background(), Job{Platform: "email"})
	if err == nil {
		t.Fatal("expected error for missing sender data")
	}
}

func TestSendToAllSenderConstructionFails(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	plat := &fakePlatform{name: "email", sender: sender, senderErr: errors.New("login refused")}
	d := New(newFakeRegistry(plat), Config{}, logx.Nop())

	_, err := d.SendToAll(context.Background(), Job{
		Platform:   "email",
		Sender:     "bad-creds",
		Recipients: recipientsData("a@x.com"),
		Content:    "Hello",
	})
	if err == nil {
		t.Fatal("expected sender construction error")
	}
	if len(sender.sentTo()) != 0 {
		t.Fatal("messages were sent despite sender construction failure")
	}
}

func TestTransportFailureDoesNotAbortBatch(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{
		fakeUser: fakeUser{id: "ops@x.com"},
		failFor:  map[string]error{"b@x.com": errors.New("mailbox full")},
	}
	plat := &fakePlatform{name: "email", sender: sender}
	d := New(newFakeRegistry(plat), Config{}, logx.Nop())

	res, err := d.SendToAll(context.Background(), Job{
		Platform:   "email",
		Sender:     "creds",
		Recipients: recipientsData("a@x.com", "b@x.com", "c@x.com"),
		Content:    "Hello",
	})
	if err != nil {
		t.Fatalf("SendToAll error: %v", err)
	}
	if res.Sent != 2 || res.Failed != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	got := sender.sentTo()
	if _, ok := got["c@x.com"]; !ok {
		t.Fatal("recipient after the failing one was not attempted")
	}
}

func TestDispatchWithWorkerPool(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{fakeUser: fakeUser{id: "ops@x.com"}}
	plat := &fakePlatform{name: "email", sender: sender}
	d := New(newFakeRegistry(plat), Config{Workers: 4}, logx.Nop())

	var recips []string
	for i := 0; i < 20; i++ {
		recips = append(recips, fmt.Sprintf("user%02d@x.com", i))
	}
	res, err := d.SendToAll(context.Background(), Job{
		Platform:   "email",
		Sender:     "creds",
		Recipients: recipientsData(recips...),
		Content:    "Hello",
	})
	if err != nil {
		t.Fatalf("SendToAll error: %v", err)
	}
	if res.Sent != 20 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := len(sender.sentTo()); got != 20 {
		t.Fatalf("sent to %d distinct recipients, want 20", got)
	}
}

func TestCancelledContextSendsNothing(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{fakeUser: fakeUser{id: "ops@x.com"}}
	plat := &fakePlatform{name: "email", sender: sender}
	d := New(newFakeRegistry(plat), Config{}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := d.SendToAll(ctx, Job{
		Platform:   "email",
		Sender:     "creds",
		Recipients: recipientsData("a@x.com", "b@x.com"),
		Content:    "Hello",
	})
	if err != nil {
		t.Fatalf("SendToAll error: %v", err)
	}
	if res.Sent != 0 {
		t.Fatalf("sent %d messages under a cancelled context", res.Sent)
	}
}
