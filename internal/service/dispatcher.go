package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"duekeeper/internal/model"
)

const (
	defaultWorkers     = 4
	defaultSendTimeout = 10 * time.Second
)

// UserSource lists users who may receive reminders.
type UserSource interface {
	ListReminderEligible(ctx context.Context) ([]model.User, error)
}

// TaskStore is the task persistence the dispatcher needs.
type TaskStore interface {
	ListForUser(ctx context.Context, user model.User) ([]model.Task, error)
	SaveRollover(ctx context.Context, task model.Task) error
}

// Ledger records delivered reminders, at most one per key.
type Ledger interface {
	Delivered(ctx context.Context, key model.LedgerKey) (bool, error)
	// Record reports false when another writer already holds the key.
	Record(ctx context.Context, key model.LedgerKey, deliveredAt time.Time) (bool, error)
}

// DispatcherConfig tunes the batch sweep.
type DispatcherConfig struct {
	// Workers bounds how many users are processed at once.
	Workers int
	// RatePerSec limits outbound sends across all workers. Zero means unlimited.
	RatePerSec  int
	SendTimeout time.Duration
	// Location is used for users without a valid timezone.
	Location *time.Location
}

// Result counts the outcome of one dispatch run.
type Result struct {
	Sent    int
	Skipped int
}

// Dispatcher is the batch reminder sweep.
type Dispatcher struct {
	users    UserSource
	tasks    TaskStore
	ledger   Ledger
	channels map[model.ChannelKind]Channel
	cfg      DispatcherConfig
	limiter  *rate.Limiter
	clock    func() time.Time
	log      zerolog.Logger
}

func NewDispatcher(users UserSource, tasks TaskStore, ledger Ledger, channels []Channel, cfg DispatcherConfig, log zerolog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSec > 0 {
		// Token bucket: burst = rate per sec.
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}

	byKind := make(map[model.ChannelKind]Channel, len(channels))
	for _, ch := range channels {
		byKind[ch.Name()] = ch
	}

	return &Dispatcher{
		users:    users,
		tasks:    tasks,
		ledger:   ledger,
		channels: byKind,
		cfg:      cfg,
		limiter:  limiter,
		clock:    time.Now,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// DispatchAll loads eligible users and dispatches for them.
func (d *Dispatcher) DispatchAll(ctx context.Context, now time.Time) (Result, error) {
	users, err := d.users.ListReminderEligible(ctx)
	if err != nil {
		return Result{}, err
	}
	return d.Dispatch(ctx, users, now)
}

// Dispatch runs one sweep over users. Users are processed independently on a
// bounded pool. Cancelling ctx stops new deliveries; sends already in flight
// finish and are recorded. The returned error is ctx's, if it was cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, users []model.User, now time.Time) (Result, error) {
	started := d.clock()
	log := d.log.With().Str("run", uuid.NewString()).Logger()

	var sent, skipped atomic.Int64
	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)

	for _, user := range users {
		if ctx.Err() != nil {
			break
		}
		channels := d.channelsFor(user)
		if !user.Reminders.Enabled || !user.RemindersEntitled || len(channels) == 0 {
			continue
		}
		g.Go(func() error {
			s, k := d.dispatchUser(ctx, log, user, channels, now)
			sent.Add(int64(s))
			skipped.Add(int64(k))
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Sent: int(sent.Load()), Skipped: int(skipped.Load())}
	log.Info().
		Int("users", len(users)).
		Int("sent", res.Sent).
		Int("skipped", res.Skipped).
		Dur("took", d.clock().Sub(started)).
		Msg("dispatch finished")
	return res, ctx.Err()
}

func (d *Dispatcher) channelsFor(user model.User) []Channel {
	var out []Channel
	for _, kind := range user.EnabledChannels() {
		if ch, ok := d.channels[kind]; ok {
			out = append(out, ch)
		}
	}
	return out
}

func (d *Dispatcher) dispatchUser(ctx context.Context, log zerolog.Logger, user model.User, channels []Channel, now time.Time) (sent, skipped int) {
	log = log.With().Uint("user", user.ID).Logger()
	local := now.In(user.Location(d.cfg.Location))
	today := StartOfDay(local)
	// Today's slot stays due until midnight, so a failed or missed tick is
	// picked up by any later run that day. The ledger drops repeats.
	slot := dailySlot(local, user.Reminders)
	slotReached := !slot.After(local)

	tasks, err := d.tasks.ListForUser(ctx, user)
	if err != nil {
		log.Warn().Err(err).Msg("list tasks")
		return 0, 0
	}

	for _, task := range tasks {
		task, err := d.advance(ctx, log, task, today)
		if err != nil {
			log.Warn().Err(err).Uint("task", task.ID).Msg("skip task with bad schedule")
			skipped++
			continue
		}
		// Shared household tasks are reminded to their owner only.
		if task.IsCompleted() || task.UserID != user.ID {
			continue
		}

		if !slotReached {
			continue
		}
		dec, ok := Plan(task, user.Reminders, slot.Add(-time.Nanosecond))
		if !ok || !dec.FireAt.Equal(slot) {
			continue
		}
		if ctx.Err() != nil {
			return sent, skipped
		}

		key := dec.LedgerKey()
		delivered, err := d.ledger.Delivered(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("ledger lookup failed")
			skipped++
			continue
		}
		if delivered {
			log.Debug().Str("key", key.String()).Msg("already delivered")
			skipped++
			continue
		}

		if !d.deliver(ctx, log, user, channels, dec) {
			skipped++
			continue
		}
		sent++

		recorded, err := d.ledger.Record(context.WithoutCancel(ctx), key, d.clock())
		switch {
		case err != nil:
			log.Error().Err(err).Str("key", key.String()).Msg("ledger write failed")
		case !recorded:
			log.Debug().Str("key", key.String()).Msg("ledger entry already written by another run")
		}
	}
	return sent, skipped
}

// advance applies rollover and writes it back. A failed write is logged; the
// advanced task is still used since rollover is recomputed on every read.
func (d *Dispatcher) advance(ctx context.Context, log zerolog.Logger, task model.Task, today time.Time) (model.Task, error) {
	advanced, changed, err := AdvanceIfNeeded(task, today)
	if err != nil || !changed {
		return advanced, err
	}
	if err := d.tasks.SaveRollover(ctx, advanced); err != nil {
		log.Warn().Err(err).Uint("task", task.ID).Msg("persist rollover")
	}
	return advanced, nil
}

// deliver sends dec on every channel and reports whether at least one succeeded.
func (d *Dispatcher) deliver(ctx context.Context, log zerolog.Logger, user model.User, channels []Channel, dec Decision) bool {
	n := Notification{
		UserID:  user.ID,
		TaskID:  dec.TaskID,
		Title:   dec.Title,
		Kind:    dec.Kind,
		DueDate: dec.DueDate,
		FireAt:  dec.FireAt,
	}

	ok := false
	for _, ch := range channels {
		if err := d.limiter.Wait(ctx); err != nil {
			// Cancelled: start nothing new.
			return ok
		}
		if err := d.send(ctx, ch, user.Address(ch.Name()), n); err != nil {
			log.Warn().Err(err).Str("channel", string(ch.Name())).Uint("task", dec.TaskID).Msg("delivery failed")
			continue
		}
		ok = true
	}
	return ok
}

// send runs one delivery detached from batch cancellation but bounded by the
// send timeout. A channel that ignores its context still cannot stall the run.
func (d *Dispatcher) send(ctx context.Context, ch Channel, address string, n Notification) error {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.SendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ch.Send(sendCtx, address, n) }()

	select {
	case err := <-done:
		return err
	case <-sendCtx.Done():
		return fmt.Errorf("send via %s: %w", ch.Name(), sendCtx.Err())
	}
}
