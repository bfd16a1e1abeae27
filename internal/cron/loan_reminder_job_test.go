package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/labinventory-backend/internal/notifications"
	"github.com/angelmondragon/labinventory-backend/internal/reminders"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

type fakeDue struct {
	rows     []reminders.ReminderDTO
	err      error
	lastDays int
}

func (f *fakeDue) Due(_ context.Context, days int) ([]reminders.ReminderDTO, error) {
	f.lastDays = days
	return f.rows, f.err
}

type sentReminder struct {
	userID uuid.UUID
	event  notifications.Event
}

type recordingReminderNotifier struct {
	sent []sentReminder
}

func (r *recordingReminderNotifier) NotifyUser(_ context.Context, userID uuid.UUID, event notifications.Event) {
	r.sent = append(r.sent, sentReminder{userID: userID, event: event})
}

type fakeDedup struct {
	claimed map[string]bool
	failOn  string
}

func (f *fakeDedup) ReminderKey(loanID, day string) string { return "lab:reminder:" + loanID + ":" + day }

func (f *fakeDedup) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if key == f.failOn {
		return false, errors.New("redis down")
	}
	if f.claimed[key] {
		return false, nil
	}
	f.claimed[key] = true
	return true, nil
}

func newReminderJob(t *testing.T, due *fakeDue, notifier *recordingReminderNotifier, dedup *fakeDedup) *loanReminderJob {
	t.Helper()
	jobIface, err := NewLoanReminderJob(LoanReminderJobParams{
		Logger:    testLogger(),
		Reminders: due,
		Notifier:  notifier,
		Dedup:     dedup,
		Location:  time.FixedZone("WIB", 7*60*60),
	})
	require.NoError(t, err)
	job := jobIface.(*loanReminderJob)
	// 23:30 UTC on the 4th is already the 5th in WIB.
	job.now = func() time.Time { return time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC) }
	return job
}

func TestLoanReminderJobNotifiesOncePerDay(t *testing.T) {
	overdue := reminders.ReminderDTO{LoanID: uuid.New(), UserID: uuid.New(), ItemName: "Microscope", IsOverdue: true, DaysOverdue: 2}
	today := reminders.ReminderDTO{LoanID: uuid.New(), UserID: uuid.New(), ItemName: "Beaker set"}
	tomorrow := reminders.ReminderDTO{LoanID: uuid.New(), UserID: uuid.New(), DaysUntilDue: 1}
	due := &fakeDue{rows: []reminders.ReminderDTO{overdue, today, tomorrow}}
	notifier := &recordingReminderNotifier{}
	dedup := &fakeDedup{claimed: map[string]bool{}}
	job := newReminderJob(t, due, notifier, dedup)

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, defaultReminderWindowDays, due.lastDays)
	require.Len(t, notifier.sent, 3)
	require.True(t, dedup.claimed["lab:reminder:"+overdue.LoanID.String()+":2024-03-05"])

	require.Equal(t, overdue.UserID, notifier.sent[0].userID)
	require.Equal(t, "Loan overdue", notifier.sent[0].event.Title)
	require.Equal(t, enums.NotificationTypeError, notifier.sent[0].event.Type)
	require.Equal(t, enums.NotificationRelatedLoan, notifier.sent[0].event.RelatedType)
	require.Equal(t, overdue.LoanID, *notifier.sent[0].event.RelatedID)
	require.Equal(t, "Loan due today", notifier.sent[1].event.Title)
	require.Equal(t, "Loan due soon", notifier.sent[2].event.Title)
	require.Contains(t, notifier.sent[2].event.Message, "borrowed equipment")

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, notifier.sent, 3, "a rerun on the same day must not notify again")
}

func TestLoanReminderJobAggregatesClaimErrors(t *testing.T) {
	first := reminders.ReminderDTO{LoanID: uuid.New(), UserID: uuid.New(), DaysUntilDue: 1}
	second := reminders.ReminderDTO{LoanID: uuid.New(), UserID: uuid.New(), DaysUntilDue: 1}
	dedup := &fakeDedup{claimed: map[string]bool{}}
	dedup.failOn = dedup.ReminderKey(first.LoanID.String(), "2024-03-05")
	notifier := &recordingReminderNotifier{}
	job := newReminderJob(t, &fakeDue{rows: []reminders.ReminderDTO{first, second}}, notifier, dedup)

	err := job.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), first.LoanID.String())
	require.Len(t, notifier.sent, 1)
	require.Equal(t, second.UserID, notifier.sent[0].userID)
}

func TestLoanReminderJobPropagatesListError(t *testing.T) {
	job := newReminderJob(t, &fakeDue{err: errors.New("db down")}, &recordingReminderNotifier{}, &fakeDedup{claimed: map[string]bool{}})
	require.Error(t, job.Run(context.Background()))
}
