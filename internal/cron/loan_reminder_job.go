package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/labinventory-backend/internal/notifications"
	"github.com/angelmondragon/labinventory-backend/internal/reminders"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
)

const (
	defaultReminderWindowDays = 1
	reminderKeyTTL            = 48 * time.Hour
	dayLayout                 = "2006-01-02"
)

type dueLister interface {
	Due(ctx context.Context, days int) ([]reminders.ReminderDTO, error)
}

type reminderNotifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, event notifications.Event)
}

// reminderDeduper claims a per-loan, per-day key so a borrower is reminded
// at most once a day even if the job reruns.
type reminderDeduper interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReminderKey(loanID, day string) string
}

type LoanReminderJobParams struct {
	Logger     *logger.Logger
	Reminders  dueLister
	Notifier   reminderNotifier
	Dedup      reminderDeduper
	WindowDays int
	Location   *time.Location
}

func NewLoanReminderJob(params LoanReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reminders == nil {
		return nil, fmt.Errorf("reminder service required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Dedup == nil {
		return nil, fmt.Errorf("dedup store required")
	}
	window := params.WindowDays
	if window <= 0 {
		window = defaultReminderWindowDays
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &loanReminderJob{
		logg:      params.Logger,
		reminders: params.Reminders,
		notifier:  params.Notifier,
		dedup:     params.Dedup,
		window:    window,
		loc:       loc,
		now:       time.Now,
	}, nil
}

type loanReminderJob struct {
	logg      *logger.Logger
	reminders dueLister
	notifier  reminderNotifier
	dedup     reminderDeduper
	window    int
	loc       *time.Location
	now       func() time.Time
}

func (j *loanReminderJob) Name() string { return "loan-reminders" }

func (j *loanReminderJob) Run(ctx context.Context) error {
	due, err := j.reminders.Due(ctx, j.window)
	if err != nil {
		return fmt.Errorf("list due loans: %w", err)
	}
	day := j.now().In(j.loc).Format(dayLayout)

	var errs error
	sent, skipped := 0, 0
	for _, reminder := range due {
		key := j.dedup.ReminderKey(reminder.LoanID.String(), day)
		claimed, err := j.dedup.SetNX(ctx, key, "1", reminderKeyTTL)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("claim reminder %s: %w", reminder.LoanID, err))
			continue
		}
		if !claimed {
			skipped++
			continue
		}
		j.notifier.NotifyUser(ctx, reminder.UserID, reminderEvent(reminder))
		sent++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"day":         day,
		"window_days": j.window,
		"due":         len(due),
		"sent":        sent,
		"skipped":     skipped,
	})
	j.logg.Info(logCtx, "loan reminders complete")
	return errs
}

func reminderEvent(r reminders.ReminderDTO) notifications.Event {
	name := r.ItemName
	if name == "" {
		name = "borrowed equipment"
	}
	loanID := r.LoanID
	event := notifications.Event{
		RelatedType: enums.NotificationRelatedLoan,
		RelatedID:   &loanID,
	}
	switch {
	case r.IsOverdue:
		event.Title = "Loan overdue"
		event.Message = fmt.Sprintf("%s was due %d day(s) ago. Please return it.", name, r.DaysOverdue)
		event.Type = enums.NotificationTypeError
	case r.DaysUntilDue == 0:
		event.Title = "Loan due today"
		event.Message = fmt.Sprintf("%s is due today.", name)
		event.Type = enums.NotificationTypeWarning
	default:
		event.Title = "Loan due soon"
		event.Message = fmt.Sprintf("%s is due in %d day(s).", name, r.DaysUntilDue)
		event.Type = enums.NotificationTypeWarning
	}
	return event
}
