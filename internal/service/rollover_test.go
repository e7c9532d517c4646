package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duekeeper/internal/model"
)

func completedAt(t time.Time) *time.Time { return &t }

func TestAdvanceIfNeeded(t *testing.T) {
	t.Parallel()
	monthly := mustMonths(t, 1)

	tests := []struct {
		name        string
		task        model.Task
		today       time.Time
		wantChanged bool
		wantDue     time.Time
	}{
		{
			name:    "pending overdue task stays",
			task:    model.Task{ID: 1, Schedule: monthly, DueDate: noon(2025, 1, 10)},
			today:   day(2025, 3, 1),
			wantDue: noon(2025, 1, 10),
		},
		{
			name:    "completed fixed date is terminal",
			task:    model.Task{ID: 2, Schedule: model.FixedDate(), DueDate: noon(2025, 1, 5), CompletedAt: completedAt(noon(2025, 1, 5))},
			today:   day(2026, 1, 1),
			wantDue: noon(2025, 1, 5),
		},
		{
			name:    "completed before due date waits",
			task:    model.Task{ID: 3, Schedule: monthly, DueDate: noon(2025, 1, 10), CompletedAt: completedAt(noon(2025, 1, 8))},
			today:   day(2025, 1, 9),
			wantDue: noon(2025, 1, 10),
		},
		{
			name:    "completed on the due date itself waits",
			task:    model.Task{ID: 4, Schedule: monthly, DueDate: noon(2025, 1, 10), CompletedAt: completedAt(noon(2025, 1, 8))},
			today:   day(2025, 1, 10),
			wantDue: noon(2025, 1, 10),
		},
		{
			name:        "completed and elapsed advances",
			task:        model.Task{ID: 5, Schedule: monthly, DueDate: noon(2025, 1, 10), CompletedAt: completedAt(noon(2025, 1, 8))},
			today:       day(2025, 1, 11),
			wantChanged: true,
			wantDue:     noon(2025, 2, 10),
		},
		{
			name:        "yearly completed long ago jumps past today",
			task:        model.Task{ID: 6, Schedule: mustYearly(t, time.April, 15), DueDate: noon(2022, 4, 15), CompletedAt: completedAt(noon(2022, 4, 1))},
			today:       day(2025, 5, 1),
			wantChanged: true,
			wantDue:     noon(2026, 4, 15),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed, err := AdvanceIfNeeded(tt.task, tt.today)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantDue, got.DueDate)
			if changed {
				assert.Nil(t, got.CompletedAt)
			} else {
				assert.Equal(t, tt.task.CompletedAt, got.CompletedAt)
			}
			assert.Equal(t, tt.task.CompletionCount, got.CompletionCount)
		})
	}
}

func TestAdvanceIfNeededIsIdempotent(t *testing.T) {
	t.Parallel()
	task := model.Task{ID: 1, Schedule: mustMonths(t, 3), DueDate: noon(2025, 1, 31), CompletedAt: completedAt(noon(2025, 1, 30)), CompletionCount: 4}
	today := day(2025, 2, 2)

	once, _, err := AdvanceIfNeeded(task, today)
	require.NoError(t, err)
	twice, changed, err := AdvanceIfNeeded(once, today)
	require.NoError(t, err)

	assert.False(t, changed)
	assert.Equal(t, once, twice)
	assert.Equal(t, noon(2025, 4, 30), twice.DueDate)
}

func TestAdvanceIfNeededDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	done := noon(2025, 1, 9)
	task := model.Task{ID: 1, Schedule: mustMonths(t, 1), DueDate: noon(2025, 1, 10), CompletedAt: &done}

	_, changed, err := AdvanceIfNeeded(task, day(2025, 1, 20))
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, noon(2025, 1, 10), task.DueDate)
	assert.NotNil(t, task.CompletedAt)
}

func TestAdvanceIfNeededBadSchedule(t *testing.T) {
	t.Parallel()
	task := model.Task{ID: 9, Schedule: model.Schedule{Kind: "weekly"}, DueDate: noon(2025, 1, 10), CompletedAt: completedAt(noon(2025, 1, 9))}
	got, changed, err := AdvanceIfNeeded(task, day(2025, 2, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrUnknownScheduleKind))
	assert.False(t, changed)
	assert.Equal(t, task, got)
}
