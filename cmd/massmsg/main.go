// Command massmsg broadcasts one message body to many recipients over a
// named platform, optionally personalizing it per recipient from the
// contact directory.
//
// Usage:
//
//	massmsg [flags] <platform> <content>
//
// Plain mode sends content as-is. With -template, content is a template
// with positional placeholders ({0}, {1}, ...) filled per recipient from
// the templating data (-data, or stdin), keyed by contact id.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"

	"massmsg/internal/broadcast"
	"massmsg/internal/config"
	"massmsg/internal/directory"
	"massmsg/internal/platform"
	"massmsg/internal/platform/email"
	"massmsg/internal/platform/slack"
	"massmsg/internal/platform/telegram"
	"massmsg/pkg/logx"
)

// stringList collects repeated flag values.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		recipients stringList
		senderJSON string
		dataJSON   string
		dbPath     string
		templated  bool
		every      string
	)
	flag.Var(&recipients, "r", "recipient to send to (repeatable); bare identifier or JSON record")
	flag.StringVar(&senderJSON, "s", "", "JSON data for the sender (default: file named by MASSMSG_<PLATFORM>_SENDER)")
	flag.StringVar(&dataJSON, "data", "", "JSON templating data keyed by contact id (default in -template mode: stdin)")
	flag.StringVar(&dbPath, "db", "", "contact directory database path (default: MASSMSG_DB)")
	flag.BoolVar(&templated, "template", false, "personalize content per recipient from the contact directory")
	flag.StringVar(&every, "every", "", "cron spec; repeat the broadcast on this schedule until interrupted")
	flag.Parse()

	if flag.NArg() != 2 {
		return fmt.Errorf("usage: massmsg [flags] <platform> <content>")
	}
	platformName := flag.Arg(0)
	content := flag.Arg(1)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	log, err := logx.New(logx.Config{Level: cfg.LogLevel, Console: true, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer log.Close()

	reg := platform.NewRegistry()
	reg.Register(email.Name, func() platform.Platform { return email.New() })
	reg.Register(slack.Name, func() platform.Platform { return slack.New() })
	reg.Register(telegram.Name, func() platform.Platform { return telegram.New() })

	senderData, err := resolveSender(platformName, senderJSON, log)
	if err != nil {
		return err
	}

	job := broadcast.Job{
		Platform:   platformName,
		Sender:     senderData,
		Recipients: parseRecipients(recipients, log),
		Content:    content,
	}

	d := broadcast.New(reg, broadcast.Config{
		Workers:     cfg.Workers,
		RatePerSec:  cfg.RatePerSec,
		SendTimeout: cfg.SendTimeout,
	}, log)

	var once func(context.Context) error
	if templated {
		tj, err := templatedJob(job, dataJSON, dbPath, cfg, log)
		if err != nil {
			return err
		}
		once = func(ctx context.Context) error {
			_, err := d.SendTemplated(ctx, tj)
			return err
		}
	} else {
		once = func(ctx context.Context) error {
			_, err := d.SendToAll(ctx, job)
			return err
		}
	}

	if every == "" {
		return once(ctx)
	}
	return repeat(ctx, every, once, log)
}

// resolveSender parses the -s JSON, falling back to the credentials file
// named by MASSMSG_<PLATFORM>_SENDER. Missing both is a fatal precondition
// failure.
func resolveSender(platformName, senderJSON string, log logx.Logger) (any, error) {
	if senderJSON != "" {
		var v any
		if err := json.Unmarshal([]byte(senderJSON), &v); err != nil {
			return nil, fmt.Errorf("parsing sender JSON: %w", err)
		}
		return v, nil
	}

	env := config.SenderEnv(platformName)
	log.Debug("sender not given on the command line; trying environment", logx.String("env", env))
	path := os.Getenv(env)
	if path == "" {
		return nil, fmt.Errorf("no sender specified: pass -s or set %s to a credentials file", env)
	}
	return config.LoadSenderFile(path)
}

// parseRecipients decodes each -r value as JSON where possible and passes
// it through as a bare string otherwise.
func parseRecipients(raw []string, log logx.Logger) []any {
	out := make([]any, 0, len(raw))
	for _, r := range raw {
		var v any
		if err := json.Unmarshal([]byte(r), &v); err != nil {
			log.Debug("recipient is not JSON; passing as string", logx.String("recipient", r))
			v = r
		}
		out = append(out, v)
	}
	return out
}

func templatedJob(job broadcast.Job, dataJSON, dbPath string, cfg config.Config, log logx.Logger) (broadcast.TemplatedJob, error) {
	if dataJSON == "" || dataJSON == "-" {
		log.Debug("templating data not given on the command line; reading stdin")
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return broadcast.TemplatedJob{}, fmt.Errorf("reading templating data from stdin: %w", err)
		}
		dataJSON = string(b)
	}
	var data any
	if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
		return broadcast.TemplatedJob{}, fmt.Errorf("parsing templating data: %w", err)
	}

	if dbPath == "" {
		dbPath = cfg.DB
	}
	if dbPath == "" {
		return broadcast.TemplatedJob{}, errors.New("no contact directory specified: pass -db or set MASSMSG_DB")
	}

	return broadcast.TemplatedJob{
		Job:       job,
		Data:      data,
		Directory: directory.Config{Path: dbPath},
		Inputs:    contactDataInputs,
	}, nil
}

// contactDataInputs is the CLI's template input builder: the templating
// data is an object keyed by contact id whose values are the ordered
// substitution sequences. Contacts without an entry get no message.
func contactDataInputs(contact directory.ContactID, data any) any {
	m, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	v, ok := m[string(contact)]
	if !ok {
		return nil
	}
	return v
}

// repeat runs the broadcast immediately, then again on the cron schedule
// until the context is cancelled. Every tick is an independent run with
// fresh platform and directory resources.
func repeat(ctx context.Context, spec string, once func(context.Context) error, log logx.Logger) error {
	if err := once(ctx); err != nil {
		return err
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := once(ctx); err != nil {
			log.Error("scheduled broadcast failed", logx.Err(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid -every spec %q: %w", spec, err)
	}
	c.Start()
	log.Info("repeating broadcast", logx.String("every", spec))

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	return nil
}
