package broadcast

import (
	"errors"
	"fmt"
	"io"

	"massmsg/internal/platform"
	"massmsg/pkg/logx"
)

// resources holds the per-run platform objects. Everything here is built in
// the precondition phase and discarded when the run ends.
type resources struct {
	platform   platform.Platform
	sender     platform.ClientUser
	recipients []platform.User
}

func (d *Dispatcher) buildResources(job Job) (*resources, error) {
	ctor, err := d.reg.Resolve(job.Platform)
	if err != nil {
		return nil, err
	}
	plat := ctor()

	if job.Sender == nil {
		closePlatform(plat, d.log)
		return nil, errors.New("sender data is required")
	}
	sender, err := plat.BuildSender(job.Sender)
	if err != nil {
		closePlatform(plat, d.log)
		return nil, fmt.Errorf("build sender: %w", err)
	}

	recipients := make([]platform.User, 0, len(job.Recipients))
	for _, rd := range job.Recipients {
		u, err := plat.BuildRecipient(rd)
		if err != nil {
			r := &resources{platform: plat, sender: sender}
			r.close(d.log)
			return nil, fmt.Errorf("build recipient: %w", err)
		}
		recipients = append(recipients, u)
	}
	return &resources{platform: plat, sender: sender, recipients: recipients}, nil
}

// close releases the sender's and the adapter's transport resources. It
// runs on every exit path of a broadcast, including precondition failures.
func (r *resources) close(log logx.Logger) {
	if r == nil {
		return
	}
	if r.sender != nil {
		if err := r.sender.Close(); err != nil {
			log.Warn("closing sender", logx.Err(err))
		}
	}
	closePlatform(r.platform, log)
}

func closePlatform(p platform.Platform, log logx.Logger) {
	if c, ok := p.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn("closing platform adapter", logx.Err(err))
		}
	}
}

// buildMessages produces one message per recipient, all sharing the same
// sender and content.
func buildMessages(sender platform.ClientUser, recipients []platform.User, content string) []Message {
	msgs := make([]Message, 0, len(recipients))
	for _, r := range recipients {
		msgs = append(msgs, Message{Sender: sender, Recipient: r, Content: content})
	}
	return msgs
}
