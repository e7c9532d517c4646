package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"duekeeper/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "data", "test.db"), zerolog.Nop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func noon(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func createUser(t *testing.T, repo *UserRepository, telegramID int64) *model.User {
	t.Helper()
	user, err := repo.UpsertFromTelegram(context.Background(), telegramID, "Ann", "", "ann")
	require.NoError(t, err)
	return user
}

func TestUpsertFromTelegramDefaults(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	user := createUser(t, repo, 42)
	assert.True(t, user.RemindersEntitled)
	assert.Equal(t, model.DefaultReminderPreferences(), user.Reminders)
	assert.True(t, user.Channels.Telegram)

	again, err := repo.UpsertFromTelegram(ctx, 42, "Anna", "Smith", "ann")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)

	found, err := repo.FindByTelegramID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Anna", found.FirstName)
	assert.Equal(t, "Smith", found.LastName)
	assert.Equal(t, []model.ChannelKind{model.ChannelTelegram}, found.EnabledChannels())
}

func TestListReminderEligible(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	on := createUser(t, repo, 1)
	off := createUser(t, repo, 2)
	require.NoError(t, repo.UpdateReminders(ctx, off, model.ReminderPreferences{Enabled: false, Hour: 9, DaysBefore: 3}))
	unentitled := &model.User{RemindersEntitled: false, Reminders: model.DefaultReminderPreferences()}
	require.NoError(t, repo.Create(ctx, unentitled))

	users, err := repo.ListReminderEligible(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, on.ID, users[0].ID)
}

func TestUpdateRemindersValidates(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))
	user := createUser(t, repo, 7)

	err := repo.UpdateReminders(ctx, user, model.ReminderPreferences{Enabled: true, Hour: 25})
	require.Error(t, err)
	assert.Equal(t, model.DefaultReminderPreferences(), user.Reminders)

	prefs := model.ReminderPreferences{Enabled: true, Hour: 18, Minute: 30, DaysBefore: 5}
	require.NoError(t, repo.UpdateReminders(ctx, user, prefs))
	found, err := repo.FindByTelegramID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, prefs, found.Reminders)
}

func TestTaskScheduleRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createUser(t, NewUserRepository(db), 1)
	repo := NewTaskRepository(db)

	quarterly, err := model.EveryNMonths(3)
	require.NoError(t, err)
	leap, err := model.Yearly(time.February, 29)
	require.NoError(t, err)

	for _, schedule := range []model.Schedule{model.FixedDate(), quarterly, leap} {
		task := model.Task{UserID: user.ID, Title: schedule.String(), Schedule: schedule, DueDate: noon(2025, time.March, 1)}
		require.NoError(t, repo.Create(ctx, &task))

		found, err := repo.FindForUser(ctx, *user, task.ID)
		require.NoError(t, err)
		assert.Equal(t, schedule, found.Schedule)
		assert.True(t, found.DueDate.Equal(task.DueDate))
	}
}

func TestMarkCompletedOnce(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createUser(t, NewUserRepository(db), 1)
	repo := NewTaskRepository(db)

	task := model.Task{UserID: user.ID, Title: "Rent", Schedule: model.FixedDate(), DueDate: noon(2025, time.June, 1)}
	require.NoError(t, repo.Create(ctx, &task))

	first := noon(2025, time.May, 30)
	ok, err := repo.MarkCompleted(ctx, &task, first)
	require.NoError(t, err)
	assert.True(t, ok)

	stale := task
	ok, err = repo.MarkCompleted(ctx, &stale, noon(2025, time.May, 31))
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindForUser(ctx, *user, task.ID)
	require.NoError(t, err)
	require.NotNil(t, found.CompletedAt)
	assert.True(t, found.CompletedAt.Equal(first))
	assert.Equal(t, 1, found.CompletionCount)
}

func TestSaveRollover(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createUser(t, NewUserRepository(db), 1)
	repo := NewTaskRepository(db)

	monthly, err := model.EveryNMonths(1)
	require.NoError(t, err)
	task := model.Task{UserID: user.ID, Title: "Rent", Schedule: monthly, DueDate: noon(2025, time.May, 10)}
	require.NoError(t, repo.Create(ctx, &task))
	_, err = repo.MarkCompleted(ctx, &task, noon(2025, time.May, 9))
	require.NoError(t, err)

	require.Error(t, repo.SaveRollover(ctx, task), "a completed task cannot be written as a rollover")

	advanced := task
	advanced.CompletedAt = nil
	advanced.DueDate = noon(2025, time.June, 10)
	require.NoError(t, repo.SaveRollover(ctx, advanced))

	// A second writer racing the same rollover changes nothing.
	late := advanced
	late.DueDate = noon(2025, time.July, 10)
	require.NoError(t, repo.SaveRollover(ctx, late))

	found, err := repo.FindForUser(ctx, *user, task.ID)
	require.NoError(t, err)
	assert.Nil(t, found.CompletedAt)
	assert.True(t, found.DueDate.Equal(noon(2025, time.June, 10)))
	assert.Equal(t, 1, found.CompletionCount)
}

func TestHouseholdVisibility(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	repo := NewTaskRepository(db)

	household := uint(3)
	owner := createUser(t, users, 1)
	owner.HouseholdID = &household
	member := createUser(t, users, 2)
	member.HouseholdID = &household
	stranger := createUser(t, users, 3)

	shared := model.Task{UserID: owner.ID, HouseholdID: &household, Title: "Water bill", Schedule: model.FixedDate(), DueDate: noon(2025, time.June, 1)}
	private := model.Task{UserID: owner.ID, Title: "Dentist", Schedule: model.FixedDate(), DueDate: noon(2025, time.June, 2)}
	require.NoError(t, repo.Create(ctx, &shared))
	require.NoError(t, repo.Create(ctx, &private))

	tasks, err := repo.ListForUser(ctx, *owner)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = repo.ListForUser(ctx, *member)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, shared.ID, tasks[0].ID)

	_, err = repo.FindForUser(ctx, *stranger, shared.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	err = repo.Delete(ctx, *stranger, shared.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMemberCannotDeleteSharedTask(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	households := NewHouseholdRepository(db)
	repo := NewTaskRepository(db)

	owner := createUser(t, users, 1)
	household, err := households.Create(ctx, owner)
	require.NoError(t, err)
	member := createUser(t, users, 2)
	_, err = households.Join(ctx, member, household.InviteCode)
	require.NoError(t, err)

	shared := model.Task{UserID: owner.ID, HouseholdID: &household.ID, Title: "Water bill", Schedule: model.FixedDate(), DueDate: noon(2025, time.June, 1)}
	require.NoError(t, repo.Create(ctx, &shared))

	err = repo.Delete(ctx, *member, shared.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repo.FindForUser(ctx, *member, shared.ID)
	require.NoError(t, err, "still visible to the member")

	require.NoError(t, repo.Delete(ctx, *owner, shared.ID))
	_, err = repo.FindForUser(ctx, *owner, shared.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestHouseholdInviteCode(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	households := NewHouseholdRepository(db)

	owner := createUser(t, users, 1)
	household, err := households.Create(ctx, owner)
	require.NoError(t, err)
	assert.NotEmpty(t, household.InviteCode)
	assert.Equal(t, owner.ID, household.OwnerID)
	require.NotNil(t, owner.HouseholdID)
	assert.Equal(t, household.ID, *owner.HouseholdID)

	stored, err := users.FindByTelegramID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, stored.HouseholdID)
	assert.Equal(t, household.ID, *stored.HouseholdID)

	// Knowing the numeric id is not enough to get in.
	intruder := createUser(t, users, 2)
	for _, guess := range []string{"", "1", "00000000-0000-0000-0000-000000000000"} {
		_, err = households.Join(ctx, intruder, guess)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound, guess)
	}
	assert.Nil(t, intruder.HouseholdID)

	joined, err := households.Join(ctx, intruder, " "+household.InviteCode+" ")
	require.NoError(t, err)
	assert.Equal(t, household.ID, joined.ID)
	require.NotNil(t, intruder.HouseholdID)
	assert.Equal(t, household.ID, *intruder.HouseholdID)

	other, err := households.Create(ctx, createUser(t, users, 3))
	require.NoError(t, err)
	assert.NotEqual(t, household.InviteCode, other.InviteCode)
}

func TestRescheduleKeepsCompletion(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createUser(t, NewUserRepository(db), 1)
	repo := NewTaskRepository(db)

	task := model.Task{UserID: user.ID, Title: "Passport", Schedule: model.FixedDate(), DueDate: noon(2025, time.June, 1)}
	require.NoError(t, repo.Create(ctx, &task))
	require.NoError(t, repo.Reschedule(ctx, &task, noon(2025, time.July, 1)))

	found, err := repo.FindForUser(ctx, *user, task.ID)
	require.NoError(t, err)
	assert.True(t, found.DueDate.Equal(noon(2025, time.July, 1)))
	assert.Equal(t, model.FixedDate(), found.Schedule)
}

func TestCategoryGetOrCreate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewCategoryRepository(db)

	none, err := repo.GetOrCreate(ctx, 1, "")
	require.NoError(t, err)
	assert.Nil(t, none)

	first, err := repo.GetOrCreate(ctx, 1, "Car")
	require.NoError(t, err)
	second, err := repo.GetOrCreate(ctx, 1, "Car")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = repo.GetOrCreate(ctx, 1, "Home")
	require.NoError(t, err)
	_, err = repo.GetOrCreate(ctx, 2, "Car")
	require.NoError(t, err)

	list, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Car", list[0].Name)
	assert.Equal(t, "Home", list[1].Name)
}

func TestLedgerFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedgerRepository(newTestDB(t))
	key := model.LedgerKey{TaskID: 5, Kind: model.ReminderDueSoon, DueDate: noon(2025, time.June, 10)}

	delivered, err := ledger.Delivered(ctx, key)
	require.NoError(t, err)
	assert.False(t, delivered)

	ok, err := ledger.Record(ctx, key, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.Record(ctx, key, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	delivered, err = ledger.Delivered(ctx, key)
	require.NoError(t, err)
	assert.True(t, delivered)

	// Another kind or another due date is a separate occurrence.
	ok, err = ledger.Record(ctx, model.LedgerKey{TaskID: 5, Kind: model.ReminderDueToday, DueDate: key.DueDate}, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = ledger.Record(ctx, model.LedgerKey{TaskID: 5, Kind: model.ReminderDueSoon, DueDate: noon(2025, time.June, 12)}, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := ledger.ListForTask(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, "2025-06-10", entries[0].DueDate)
}

func TestLedgerConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedgerRepository(newTestDB(t))
	key := model.LedgerKey{TaskID: 9, Kind: model.ReminderOverdue, DueDate: noon(2025, time.June, 10)}

	const writers = 8
	var wg sync.WaitGroup
	results := make(chan bool, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ledger.Record(ctx, key, time.Now())
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}
