// Package reminders projects active loans onto due and overdue reminders.
package reminders

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

// Reminder is the due-date view of one active loan.
type Reminder struct {
	LoanID       uuid.UUID
	UserID       uuid.UUID
	ItemID       uuid.UUID
	Quantity     int
	Status       enums.LoanStatus
	BorrowDate   time.Time
	ReturnDate   time.Time
	DaysUntilDue int
	IsOverdue    bool
	DaysOverdue  int
}

// Calculate returns reminders for the APPROVED and BORROWED loans that carry
// a return date, ordered by return date then loan id. Both today and the due
// date are reduced to calendar dates in loc before the day count is taken.
func Calculate(today time.Time, loans []models.Loan, loc *time.Location) []Reminder {
	if loc == nil {
		loc = time.UTC
	}
	start := calendarDay(today, loc)

	out := make([]Reminder, 0, len(loans))
	for _, loan := range loans {
		if !loan.Status.IsActive() || loan.ReturnDate == nil || loan.ReturnDate.IsZero() {
			continue
		}
		due := calendarDay(*loan.ReturnDate, loc)
		days := int(due.Sub(start).Hours() / 24)

		r := Reminder{
			LoanID:       loan.ID,
			UserID:       loan.UserID,
			ItemID:       loan.ItemID,
			Quantity:     loan.Quantity,
			Status:       loan.Status,
			BorrowDate:   loan.BorrowDate,
			ReturnDate:   loan.ReturnDate.UTC(),
			DaysUntilDue: days,
			IsOverdue:    days < 0,
		}
		if r.IsOverdue {
			r.DaysOverdue = -days
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ReturnDate.Equal(out[j].ReturnDate) {
			return out[i].ReturnDate.Before(out[j].ReturnDate)
		}
		return out[i].LoanID.String() < out[j].LoanID.String()
	})
	return out
}

// Within keeps reminders due in at most days days. Overdue reminders are
// always kept.
func Within(reminders []Reminder, days int) []Reminder {
	out := make([]Reminder, 0, len(reminders))
	for _, r := range reminders {
		if r.IsOverdue || r.DaysUntilDue <= days {
			out = append(out, r)
		}
	}
	return out
}

// calendarDay maps t to midnight UTC of its date in loc so that subtracting
// two results always yields whole days, independent of DST shifts in loc.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
