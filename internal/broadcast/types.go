package broadcast

import (
	"context"
	"time"

	"massmsg/internal/directory"
	"massmsg/internal/platform"
	"massmsg/pkg/logx"
)

// Config controls the dispatch loop.
type Config struct {
	// Workers bounds parallel sends. <= 1 preserves a single sequential
	// pass over recipients.
	Workers int
	// RatePerSec paces sends across all workers. 0 disables pacing.
	RatePerSec int
	// SendTimeout bounds each individual send so one unresponsive endpoint
	// cannot stall the batch. 0 means the default (10s).
	SendTimeout time.Duration
}

// Job describes a plain broadcast: one content body to every recipient,
// unmodified.
type Job struct {
	Platform string
	// Sender is platform-specific structured data (credentials, endpoint).
	Sender any
	// Recipients holds platform-specific recipient data: bare identifier
	// strings or structured records.
	Recipients []any
	Content    string
}

// TemplatedJob additionally personalizes Content per recipient. When
// Recipients is empty the effective recipient set is snapshotted from the
// directory's username table for the platform, once, at call time.
type TemplatedJob struct {
	Job
	// Data is the opaque per-broadcast dataset consulted by Inputs.
	Data any
	// Directory locates the contact store; the connection it implies is
	// scoped to this one broadcast.
	Directory directory.Config
	// Inputs computes the ordered substitution values for one contact, or
	// returns nil when there is nothing to say to that contact.
	Inputs InputFunc
}

// InputFunc is the caller-supplied template input builder, the single point
// where business-specific personalization logic enters the pipeline.
//
// Return contract: nil means "no data for this contact" (the recipient is
// skipped silently); a []string or []any is the ordered substitution
// sequence; any other value is a caller defect and aborts the batch with
// ErrInvalidTemplateInput.
type InputFunc func(contact directory.ContactID, data any) any

// Message pairs one sender, one recipient, and content. It is created once
// per recipient, sent at most once, then discarded.
type Message struct {
	Sender    platform.ClientUser
	Recipient platform.User
	Content   string
}

func (m Message) send(ctx context.Context) error {
	return m.Sender.Send(ctx, m.Recipient, m.Content)
}

// Result summarizes one run. It exists for telemetry and tests; the
// per-recipient outcomes themselves are reported through logs.
type Result struct {
	Total   int // messages that entered the dispatch loop
	Sent    int
	Failed  int
	Skipped int // templated mode: recipients dropped before dispatch
}

// Dispatcher is the top-level entry point for both broadcast modes. It is
// stateless across runs; all per-run resources are constructed at the start
// of a call and released before it returns.
type Dispatcher struct {
	reg *platform.Registry
	cfg Config
	log logx.Logger
}

func New(reg *platform.Registry, cfg Config, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Dispatcher{reg: reg, cfg: cfg, log: log}
}
