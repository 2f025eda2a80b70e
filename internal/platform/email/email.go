// Package email implements the e-mail platform adapter on top of gomail.
//
// Senders authenticate against an SMTP endpoint at construction time, so a
// bad credential fails the broadcast before any recipient is contacted.
// One live SMTP session is kept per host:port endpoint and reused across
// BuildSender calls within the same adapter instance.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/gomail.v2"

	"massmsg/internal/platform"
)

const Name = "email"

// SenderData is the platform-specific sender record:
//
//	{"address": "ops@x.com", "password": "...", "smtp": {"host": "mail.x.com", "port": 587}}
type SenderData struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	SMTP     struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"smtp"`
}

type Adapter struct {
	mu sync.Mutex
	// sessions caches one authenticated SMTP connection per host:port.
	sessions map[string]*session
}

// session wraps a shared SMTP connection. gomail sessions are not safe for
// concurrent use, so every send through one is serialized on mu.
type session struct {
	mu sync.Mutex
	sc gomail.SendCloser
}

func New() *Adapter {
	return &Adapter{sessions: map[string]*session{}}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) BuildSender(data any) (platform.ClientUser, error) {
	var sd SenderData
	if err := platform.DecodeData(data, &sd); err != nil {
		return nil, err
	}
	if sd.Address == "" {
		return nil, errors.New("email sender: address is required")
	}
	if sd.SMTP.Host == "" {
		return nil, errors.New("email sender: smtp.host is required")
	}
	port := sd.SMTP.Port
	if port <= 0 {
		port = 587
	}

	sess, err := a.sessionFor(sd.SMTP.Host, port, sd.Address, sd.Password)
	if err != nil {
		return nil, fmt.Errorf("email sender %s: %w", sd.Address, err)
	}
	return &clientUser{user: user{address: sd.Address}, sess: sess}, nil
}

func (a *Adapter) BuildRecipient(data any) (platform.User, error) {
	switch v := data.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, errors.New("email recipient: empty address")
		}
		return user{address: v}, nil
	default:
		var rd struct {
			Address string `json:"address"`
		}
		if err := platform.DecodeData(data, &rd); err != nil {
			return nil, err
		}
		if rd.Address == "" {
			return nil, errors.New("email recipient: address is required")
		}
		return user{address: rd.Address}, nil
	}
}

func (a *Adapter) sessionFor(host string, port int, username, password string) (*session, error) {
	key := fmt.Sprintf("%s:%d", host, port)
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[key]; ok {
		return s, nil
	}
	sc, err := gomail.NewDialer(host, port, username, password).Dial()
	if err != nil {
		return nil, fmt.Errorf("dial smtp %s: %w", key, err)
	}
	s := &session{sc: sc}
	a.sessions[key] = s
	return s, nil
}

// Close quits all cached SMTP sessions.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var first error
	for key, s := range a.sessions {
		s.mu.Lock()
		err := s.sc.Close()
		s.mu.Unlock()
		if err != nil && first == nil {
			first = fmt.Errorf("close smtp %s: %w", key, err)
		}
		delete(a.sessions, key)
	}
	return first
}

type user struct {
	address string
}

func (u user) ID() string { return u.address }

type clientUser struct {
	user
	sess *session
}

func (c *clientUser) Send(ctx context.Context, to platform.User, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", c.address)
	m.SetHeader("To", to.ID())
	m.SetBody("text/plain", content)

	// gomail is not context-aware; run the send in a goroutine so an
	// unresponsive endpoint cannot stall the batch past its deadline. An
	// abandoned send keeps the session mutex until the SMTP call returns.
	done := make(chan error, 1)
	go func() {
		c.sess.mu.Lock()
		defer c.sess.mu.Unlock()
		done <- gomail.Send(c.sess.sc, m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", to.ID(), err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is a no-op: the SMTP session is owned by the adapter and shared
// with other senders on the same endpoint.
func (c *clientUser) Close() error { return nil }
