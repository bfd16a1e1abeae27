package controllers

import (
	"net/http"

	"github.com/angelmondragon/labinventory-backend/api/responses"
	"github.com/angelmondragon/labinventory-backend/api/validators"
	"github.com/angelmondragon/labinventory-backend/internal/reminders"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
)

// ListReminders returns open loans ordered by due date. withinDays sets the
// look-ahead (default 3); overdue loans are always included.
func ListReminders(svc reminders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "reminders")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		within, err := validators.ParseQueryIntPtr(r, "withinDays", 0, 365)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), actor, reminders.ListParams{WithinDays: within})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
