// Package platform defines the adapter contract between the broadcast
// pipeline and a concrete communication platform (e-mail, Slack, Telegram).
//
// An adapter translates platform-agnostic data (decoded JSON) into a
// send-capable sender and addressable recipients. Adapters never share code
// beyond these interfaces.
package platform

import "context"

// User is a recipient-capable identity on one platform. Immutable once
// constructed.
type User interface {
	// ID returns the user's primary identifier (address, handle, chat id).
	// It is also the key used for all contact-directory lookups about this
	// user.
	ID() string
}

// ClientUser is a User that can additionally send content to another User.
//
// A ClientUser may own a live transport resource (an authenticated SMTP
// session, a bot handle). Send must honor ctx cancellation and deadlines;
// implementations that share a session across recipients must serialize
// concurrent Sends themselves.
type ClientUser interface {
	User
	Send(ctx context.Context, to User, content string) error
	// Close releases any transport resource owned by this sender. Safe to
	// call on senders that own nothing.
	Close() error
}

// Platform builds senders and recipients from platform-agnostic data.
//
// BuildSender may perform network/session setup (login, handshake) and is
// the only construction path allowed to fail for transport reasons; such
// failures abort a broadcast before any send. BuildRecipient never performs
// I/O: it accepts either a bare identifier string or a structured record
// and normalizes both to the same internal shape.
type Platform interface {
	Name() string
	BuildSender(data any) (ClientUser, error)
	BuildRecipient(data any) (User, error)
}
