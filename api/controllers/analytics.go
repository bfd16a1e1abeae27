package controllers

import (
	"net/http"

	"github.com/angelmondragon/labinventory-backend/api/responses"
	"github.com/angelmondragon/labinventory-backend/api/validators"
	"github.com/angelmondragon/labinventory-backend/internal/analytics"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
)

// AnalyticsReport serves monthly loan and damage series for ?months=.
func AnalyticsReport(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "analytics")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		months, err := validators.ParseQueryInt(r, "months", analytics.DefaultMonths, 1, analytics.MaxMonths)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Report(r.Context(), actor, months)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
