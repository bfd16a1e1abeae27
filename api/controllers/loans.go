package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/labinventory-backend/api/responses"
	"github.com/angelmondragon/labinventory-backend/api/validators"
	"github.com/angelmondragon/labinventory-backend/internal/loans"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
)

type createLoanRequest struct {
	ItemID     string  `json:"item_id" validate:"required,uuid"`
	Quantity   int     `json:"quantity" validate:"required,min=1"`
	BorrowDate string  `json:"borrow_date" validate:"required"`
	ReturnDate *string `json:"return_date"`
	Notes      *string `json:"notes" validate:"omitempty,max=2000"`
}

type loanStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type returnDateRequest struct {
	ReturnDate *string `json:"return_date"`
}

// ListLoans returns the caller's loans, or every loan for admins.
func ListLoans(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "loans")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var status *enums.LoanStatus
		if raw := validators.QueryString(r, "status", 16); raw != "" {
			parsed, err := enums.ParseLoanStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		list, err := svc.List(r.Context(), actor, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetLoan(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "loans")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.PathUUID(r, "loanId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		loan, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, loan)
	}
}

// CreateLoan files a PENDING loan request. Calendar dates are read in loc.
func CreateLoan(svc loans.Service, loc *time.Location, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "loans")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body createLoanRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := parseUUID("item_id", body.ItemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		borrowDate, err := parseDate("borrow_date", body.BorrowDate, loc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		returnDate, err := parseOptionalDate("return_date", body.ReturnDate, loc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithItemID(ctx, itemID.String())
		}
		loan, err := svc.Create(ctx, actor, loans.CreateInput{
			ItemID:     itemID,
			Quantity:   body.Quantity,
			BorrowDate: borrowDate,
			ReturnDate: returnDate,
			Notes:      body.Notes,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, loan)
	}
}

// TransitionLoan moves a loan to the requested status.
func TransitionLoan(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "loans")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.PathUUID(r, "loanId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body loanStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := enums.ParseLoanStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]any{"status": body.Status, "allowed": enums.LoanStatuses()}))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithLoanID(ctx, id.String())
		}
		loan, err := svc.Transition(ctx, actor, id, to)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, loan)
	}
}

// UpdateLoanReturnDate sets or clears the expected return date.
func UpdateLoanReturnDate(svc loans.Service, loc *time.Location, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "loans")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.PathUUID(r, "loanId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body returnDateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		returnDate, err := parseOptionalDate("return_date", body.ReturnDate, loc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		loan, err := svc.UpdateReturnDate(r.Context(), actor, id, returnDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, loan)
	}
}
