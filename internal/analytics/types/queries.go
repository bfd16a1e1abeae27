package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

// ReportRequest selects the month window for the dashboard.
type ReportRequest struct {
	Months int
	Now    time.Time
}

// MonthCount is one month of loan activity.
type MonthCount struct {
	Month    string `json:"month"`
	Count    int64  `json:"count"`
	Returned int64  `json:"returned"`
}

// MonthlyLoans breaks one month of loans down by current status.
type MonthlyLoans struct {
	Month    string `json:"month"`
	Total    int64  `json:"total"`
	Pending  int64  `json:"pending"`
	Approved int64  `json:"approved"`
	Borrowed int64  `json:"borrowed"`
	Returned int64  `json:"returned"`
}

type TopItem struct {
	ID            uuid.UUID `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	BorrowCount   int64     `json:"borrow_count"`
	TotalQuantity int64     `json:"total_quantity"`
}

// CategoryStat summarises loans per item category. ReturnRate is a
// percentage rounded to two decimals.
type CategoryStat struct {
	Category      string          `json:"category"`
	LoanCount     int64           `json:"loan_count"`
	ReturnedCount int64           `json:"returned_count"`
	ItemCount     int64           `json:"item_count"`
	ReturnRate    decimal.Decimal `json:"return_rate"`
}

type StatusCount struct {
	Status enums.LoanStatus `json:"status"`
	Count  int64            `json:"count"`
}

type DamageCategory struct {
	Category     string `json:"category"`
	ReportCount  int64  `json:"report_count"`
	PendingCount int64  `json:"pending_count"`
}

// ReportResponse wraps the dashboard series.
type ReportResponse struct {
	Months             int              `json:"months"`
	LoanTrends         []MonthCount     `json:"loan_trends"`
	MonthlyLoans       []MonthlyLoans   `json:"monthly_loans"`
	TopItems           []TopItem        `json:"top_items"`
	CategoryStats      []CategoryStat   `json:"category_stats"`
	StatusDistribution []StatusCount    `json:"status_distribution"`
	DamageByCategory   []DamageCategory `json:"damage_by_category"`
}
