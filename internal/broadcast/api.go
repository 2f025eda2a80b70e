package broadcast

import (
	"context"
	"errors"
	"fmt"

	"massmsg/internal/directory"
	"massmsg/pkg/logx"
)

// SendToAll sends the same content to every recipient over the named
// platform.
//
// The returned error covers only the construction phase: when it is nil the
// batch was fully attempted, and per-recipient outcomes are in the Result
// and the logs.
func (d *Dispatcher) SendToAll(ctx context.Context, job Job) (Result, error) {
	res, err := d.buildResources(job)
	if err != nil {
		return Result{}, err
	}
	defer res.close(d.log)

	msgs := buildMessages(res.sender, res.recipients, job.Content)
	d.log.Info("broadcast starting",
		logx.String("platform", job.Platform),
		logx.Int("recipients", len(msgs)))
	return d.dispatch(ctx, msgs), nil
}

// SendTemplated personalizes the content template per recipient from the
// contact directory before dispatching. When the job names no recipients,
// the recipient set is the directory's full username list for the platform,
// snapshotted once at call time.
func (d *Dispatcher) SendTemplated(ctx context.Context, job TemplatedJob) (Result, error) {
	if job.Inputs == nil {
		return Result{}, errors.New("template input builder is required")
	}

	// The directory connection is scoped to this run; no platform
	// connection is constructed before directory access is known-good.
	dir, err := directory.Open(ctx, job.Directory, d.log)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if cerr := dir.Close(); cerr != nil {
			d.log.Warn("closing directory", logx.Err(cerr))
		}
	}()

	recipientsData := job.Recipients
	explicit := len(recipientsData) > 0
	if !explicit {
		names, err := dir.Usernames(ctx, job.Platform)
		if err != nil {
			return Result{}, err
		}
		d.log.Debug("no recipients given; loaded from directory",
			logx.String("platform", job.Platform), logx.Int("count", len(names)))
		recipientsData = make([]any, len(names))
		for i, n := range names {
			recipientsData[i] = n
		}
	}

	res, err := d.buildResources(Job{
		Platform:   job.Platform,
		Sender:     job.Sender,
		Recipients: recipientsData,
		Content:    job.Content,
	})
	if err != nil {
		return Result{}, err
	}
	defer res.close(d.log)

	if explicit {
		ids := make([]string, len(res.recipients))
		for i, r := range res.recipients {
			ids[i] = r.ID()
		}
		unknown, err := dir.Unrecognized(ctx, job.Platform, ids)
		if err != nil {
			return Result{}, fmt.Errorf("recipient preflight: %w", err)
		}
		if len(unknown) > 0 {
			d.log.Warn("recipients not in directory", logx.Strings("recipients", unknown))
		}
	}

	unfilled := buildMessages(res.sender, res.recipients, job.Content)
	msgs, skipped, err := d.renderMessages(ctx, job.Platform, unfilled, dir, job.Data, job.Inputs)
	if err != nil {
		return Result{}, err
	}

	d.log.Info("templated broadcast starting",
		logx.String("platform", job.Platform),
		logx.Int("recipients", len(unfilled)),
		logx.Int("skipped", skipped))
	result := d.dispatch(ctx, msgs)
	result.Skipped = skipped
	return result, nil
}
