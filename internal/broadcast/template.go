package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"massmsg/internal/directory"
	"massmsg/pkg/logx"
)

// ErrInvalidTemplateInput marks a caller defect: the template input builder
// returned something other than an ordered sequence. Unlike bad recipient
// data, this aborts the whole batch.
var ErrInvalidTemplateInput = errors.New("template input builder must return an ordered sequence")

// renderMessages personalizes the unfilled messages, producing at most one
// message per input recipient. Recipients without a directory entry or
// without template input are dropped; every drop is counted and the
// directory ones are logged.
func (d *Dispatcher) renderMessages(ctx context.Context, platformName string, msgs []Message, dir *directory.Directory, data any, inputs InputFunc) ([]Message, int, error) {
	out := make([]Message, 0, len(msgs))
	skipped := 0
	for _, m := range msgs {
		id := m.Recipient.ID()
		contact, err := dir.Lookup(ctx, platformName, id)
		if err != nil {
			if errors.Is(err, directory.ErrContactNotFound) {
				d.log.Warn("skipping recipient: no directory entry",
					logx.String("platform", platformName), logx.String("recipient", id))
				skipped++
				continue
			}
			return nil, 0, err
		}

		v := inputs(contact, data)
		if v == nil {
			d.log.Debug("skipping recipient: no template input",
				logx.String("recipient", id), logx.String("contact", string(contact)))
			skipped++
			continue
		}
		args, err := sequenceArgs(v)
		if err != nil {
			return nil, 0, fmt.Errorf("%w (recipient %s)", err, id)
		}
		out = append(out, Message{
			Sender:    m.Sender,
			Recipient: m.Recipient,
			Content:   fillTemplate(m.Content, args),
		})
	}
	return out, skipped, nil
}

// sequenceArgs validates the input builder's return value against its
// contract and stringifies the sequence.
func sequenceArgs(v any) ([]string, error) {
	switch seq := v.(type) {
	case []string:
		return seq, nil
	case []any:
		out := make([]string, len(seq))
		for i, e := range seq {
			out[i] = fmt.Sprint(e)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w, got %T", ErrInvalidTemplateInput, v)
	}
}

// fillTemplate substitutes positional placeholders: "{0}", "{1}", ... index
// into args, and bare "{}" consumes args in order. Placeholders without a
// matching argument are left untouched.
func fillTemplate(tmpl string, args []string) string {
	var b strings.Builder
	b.Grow(len(tmpl))
	next := 0
	for i := 0; i < len(tmpl); {
		if tmpl[i] == '{' {
			if j := strings.IndexByte(tmpl[i:], '}'); j > 0 {
				key := tmpl[i+1 : i+j]
				if key == "" {
					if next < len(args) {
						b.WriteString(args[next])
						next++
						i += j + 1
						continue
					}
				} else if n, err := strconv.Atoi(key); err == nil && n >= 0 && n < len(args) {
					b.WriteString(args[n])
					i += j + 1
					continue
				}
			}
		}
		b.WriteByte(tmpl[i])
		i++
	}
	return b.String()
}
