// Package slack implements the Slack platform adapter over the Web API
// (chat.postMessage). Recipients are channel names or member IDs.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"massmsg/internal/platform"
)

const Name = "slack"

const defaultAPIURL = "https://slack.com/api"

// SenderData is the platform-specific sender record:
//
//	{"username": "opsbot", "token": "xoxb-..."}
type SenderData struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type Adapter struct {
	apiURL string
	http   *http.Client
}

func New() *Adapter {
	return &Adapter{apiURL: defaultAPIURL, http: &http.Client{Timeout: 15 * time.Second}}
}

// NewWithAPI points the adapter at a different API base URL. Used by tests.
func NewWithAPI(apiURL string) *Adapter {
	a := New()
	a.apiURL = strings.TrimRight(apiURL, "/")
	return a
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) BuildSender(data any) (platform.ClientUser, error) {
	var sd SenderData
	if err := platform.DecodeData(data, &sd); err != nil {
		return nil, err
	}
	if sd.Token == "" {
		return nil, errors.New("slack sender: token is required")
	}
	if sd.Username == "" {
		return nil, errors.New("slack sender: username is required")
	}
	// Verify the token up front so auth problems abort before any send.
	c := &clientUser{user: user{username: sd.Username}, token: sd.Token, adapter: a}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.authTest(ctx); err != nil {
		return nil, fmt.Errorf("slack sender %s: %w", sd.Username, err)
	}
	return c, nil
}

func (a *Adapter) BuildRecipient(data any) (platform.User, error) {
	switch v := data.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, errors.New("slack recipient: empty username")
		}
		return user{username: v}, nil
	default:
		var rd struct {
			Username string `json:"username"`
		}
		if err := platform.DecodeData(data, &rd); err != nil {
			return nil, err
		}
		if rd.Username == "" {
			return nil, errors.New("slack recipient: username is required")
		}
		return user{username: rd.Username}, nil
	}
}

type user struct {
	username string
}

func (u user) ID() string { return u.username }

type clientUser struct {
	user
	token   string
	adapter *Adapter
}

func (c *clientUser) Send(ctx context.Context, to platform.User, content string) error {
	body := map[string]any{
		"channel": to.ID(),
		"text":    content,
		"as_user": true,
	}
	if err := c.call(ctx, "chat.postMessage", body); err != nil {
		return fmt.Errorf("slack send to %s: %w", to.ID(), err)
	}
	return nil
}

func (c *clientUser) Close() error { return nil }

func (c *clientUser) authTest(ctx context.Context) error {
	return c.call(ctx, "auth.test", map[string]any{})
}

func (c *clientUser) call(ctx context.Context, method string, body map[string]any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := c.adapter.apiURL + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.adapter.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}
	var out struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !out.OK {
		return fmt.Errorf("%s: %s", method, out.Error)
	}
	return nil
}
