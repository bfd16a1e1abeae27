package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/labinventory-backend/internal/access"
	"github.com/angelmondragon/labinventory-backend/internal/analytics/query"
	"github.com/angelmondragon/labinventory-backend/internal/analytics/types"
	"github.com/angelmondragon/labinventory-backend/internal/damagereports"
	"github.com/angelmondragon/labinventory-backend/internal/items"
	"github.com/angelmondragon/labinventory-backend/internal/loans"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
)

const (
	DefaultMonths = 6
	MaxMonths     = 24
)

// Service provides the lab usage dashboard.
type Service interface {
	// Report returns usage series for the last months months; zero selects the default.
	Report(ctx context.Context, actor access.Actor, months int) (*types.ReportResponse, error)
}

type LoanLister interface {
	List(ctx context.Context, filter loans.ListFilter) ([]models.Loan, error)
}

type ItemLister interface {
	List(ctx context.Context, filter items.ListFilter) ([]models.Item, error)
}

type ReportLister interface {
	List(ctx context.Context, filter damagereports.ListFilter) ([]models.DamageReport, error)
}

type service struct {
	loans   LoanLister
	items   ItemLister
	reports ReportLister
	loc     *time.Location
	now     func() time.Time
}

// NewService builds an analytics service over the storage ports, so every
// adapter shares one aggregation implementation.
func NewService(loanRepo LoanLister, itemRepo ItemLister, reportRepo ReportLister, loc *time.Location) (Service, error) {
	if loanRepo == nil || itemRepo == nil || reportRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "analytics repositories required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &service{loans: loanRepo, items: itemRepo, reports: reportRepo, loc: loc, now: time.Now}, nil
}

func (s *service) Report(ctx context.Context, actor access.Actor, months int) (*types.ReportResponse, error) {
	if err := access.Authorize(access.OpAnalyticsView, actor, nil); err != nil {
		return nil, err
	}
	if months == 0 {
		months = DefaultMonths
	}
	if months < 1 || months > MaxMonths {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("months must be between 1 and %d", MaxMonths)).
			WithDetails(map[string]any{"months": months})
	}

	loanRows, err := s.loans.List(ctx, loans.ListFilter{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list loans")
	}
	itemRows, err := s.items.List(ctx, items.ListFilter{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}
	reportRows, err := s.reports.List(ctx, damagereports.ListFilter{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list damage reports")
	}

	req := types.ReportRequest{Months: months, Now: s.now()}
	return query.Build(req, query.Input{Loans: loanRows, Items: itemRows, Reports: reportRows}, s.loc), nil
}
