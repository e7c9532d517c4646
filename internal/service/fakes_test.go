package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"duekeeper/internal/model"
)

type memUsers []model.User

func (m memUsers) ListReminderEligible(context.Context) ([]model.User, error) {
	return m, nil
}

// memTasks keeps tasks per owner; household members see each other's shared tasks.
type memTasks struct {
	mu    sync.Mutex
	tasks []model.Task
	saved []model.Task
}

func (m *memTasks) ListForUser(_ context.Context, user model.User) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Task
	for _, t := range m.tasks {
		shared := user.HouseholdID != nil && t.HouseholdID != nil && *t.HouseholdID == *user.HouseholdID
		if t.UserID == user.ID || shared {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTasks) SaveRollover(_ context.Context, task model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ID == task.ID {
			m.tasks[i] = task
		}
	}
	m.saved = append(m.saved, task)
	return nil
}

func (m *memTasks) setDue(id uint, due time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			m.tasks[i].DueDate = due
		}
	}
}

type memLedger struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newMemLedger() *memLedger {
	return &memLedger{entries: map[string]time.Time{}}
}

func (l *memLedger) Delivered(_ context.Context, key model.LedgerKey) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[key.String()]
	return ok, nil
}

func (l *memLedger) Record(_ context.Context, key model.LedgerKey, at time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[key.String()]; ok {
		return false, nil
	}
	l.entries[key.String()] = at
	return true, nil
}

func (l *memLedger) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type sentMessage struct {
	address string
	n       Notification
}

type fakeChannel struct {
	kind model.ChannelKind

	mu   sync.Mutex
	sent []sentMessage
	fail error
	// block, when set, makes Send hang until it is closed, ignoring ctx.
	block chan struct{}
}

func (c *fakeChannel) Name() model.ChannelKind { return c.kind }

func (c *fakeChannel) Send(_ context.Context, address string, n Notification) error {
	if c.block != nil {
		<-c.block
		return errors.New("unblocked too late")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.sent = append(c.sent, sentMessage{address: address, n: n})
	return nil
}

func (c *fakeChannel) setFail(err error) {
	c.mu.Lock()
	c.fail = err
	c.mu.Unlock()
}

func (c *fakeChannel) messages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}
