// Package query aggregates loan, item and damage rows into dashboard series.
package query

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/labinventory-backend/internal/analytics/types"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

const (
	monthLayout  = "2006-01"
	topItemLimit = 10
)

// Input is the raw data a report is built from. Loans must include every
// loan so all-time series are complete; month series only count loans
// created inside the window.
type Input struct {
	Loans   []models.Loan
	Items   []models.Item
	Reports []models.DamageReport
}

// WindowStart returns the first instant of the oldest month in a window of
// months ending with the month containing now.
func WindowStart(now time.Time, months int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, -(months - 1), 0)
}

// Build computes every dashboard series. Month buckets are zero-filled so
// the response always carries exactly months entries.
func Build(req types.ReportRequest, in Input, loc *time.Location) *types.ReportResponse {
	if loc == nil {
		loc = time.UTC
	}
	start := WindowStart(req.Now, req.Months, loc)

	itemsByID := make(map[uuid.UUID]*models.Item, len(in.Items))
	for i := range in.Items {
		itemsByID[in.Items[i].ID] = &in.Items[i]
	}

	resp := &types.ReportResponse{Months: req.Months}
	resp.LoanTrends, resp.MonthlyLoans = monthSeries(in.Loans, start, req.Months, loc)
	resp.TopItems = topItems(in.Loans, itemsByID)
	resp.CategoryStats = categoryStats(in.Loans, in.Items, itemsByID)
	resp.StatusDistribution = statusDistribution(in.Loans)
	resp.DamageByCategory = damageByCategory(in.Reports, itemsByID)
	return resp
}

func monthSeries(loans []models.Loan, start time.Time, months int, loc *time.Location) ([]types.MonthCount, []types.MonthlyLoans) {
	index := make(map[string]int, months)
	trends := make([]types.MonthCount, months)
	monthly := make([]types.MonthlyLoans, months)
	for i := 0; i < months; i++ {
		key := start.AddDate(0, i, 0).Format(monthLayout)
		index[key] = i
		trends[i].Month = key
		monthly[i].Month = key
	}

	for _, loan := range loans {
		created := loan.CreatedAt.In(loc)
		if created.Before(start) {
			continue
		}
		i, ok := index[created.Format(monthLayout)]
		if !ok {
			continue
		}
		trends[i].Count++
		monthly[i].Total++
		switch loan.Status {
		case enums.LoanStatusPending:
			monthly[i].Pending++
		case enums.LoanStatusApproved:
			monthly[i].Approved++
		case enums.LoanStatusBorrowed:
			monthly[i].Borrowed++
		case enums.LoanStatusReturned:
			monthly[i].Returned++
			trends[i].Returned++
		}
	}
	return trends, monthly
}

// countsTowardUsage reports whether a loan ever left PENDING.
func countsTowardUsage(status enums.LoanStatus) bool {
	return status == enums.LoanStatusApproved || status == enums.LoanStatusBorrowed || status == enums.LoanStatusReturned
}

func topItems(loans []models.Loan, itemsByID map[uuid.UUID]*models.Item) []types.TopItem {
	byItem := map[uuid.UUID]*types.TopItem{}
	for _, loan := range loans {
		if !countsTowardUsage(loan.Status) {
			continue
		}
		item, ok := itemsByID[loan.ItemID]
		if !ok {
			continue
		}
		entry, ok := byItem[item.ID]
		if !ok {
			entry = &types.TopItem{ID: item.ID, Code: item.Code, Name: item.Name, Category: item.Category}
			byItem[item.ID] = entry
		}
		entry.BorrowCount++
		entry.TotalQuantity += int64(loan.Quantity)
	}

	out := make([]types.TopItem, 0, len(byItem))
	for _, entry := range byItem {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BorrowCount != out[j].BorrowCount {
			return out[i].BorrowCount > out[j].BorrowCount
		}
		if out[i].TotalQuantity != out[j].TotalQuantity {
			return out[i].TotalQuantity > out[j].TotalQuantity
		}
		return out[i].Code < out[j].Code
	})
	if len(out) > topItemLimit {
		out = out[:topItemLimit]
	}
	return out
}

func categoryStats(loans []models.Loan, items []models.Item, itemsByID map[uuid.UUID]*models.Item) []types.CategoryStat {
	itemCounts := map[string]int64{}
	for _, item := range items {
		itemCounts[item.Category]++
	}

	byCategory := map[string]*types.CategoryStat{}
	for _, loan := range loans {
		if !countsTowardUsage(loan.Status) {
			continue
		}
		item, ok := itemsByID[loan.ItemID]
		if !ok {
			continue
		}
		stat, ok := byCategory[item.Category]
		if !ok {
			stat = &types.CategoryStat{Category: item.Category, ItemCount: itemCounts[item.Category]}
			byCategory[item.Category] = stat
		}
		stat.LoanCount++
		if loan.Status == enums.LoanStatusReturned {
			stat.ReturnedCount++
		}
	}

	hundred := decimal.NewFromInt(100)
	out := make([]types.CategoryStat, 0, len(byCategory))
	for _, stat := range byCategory {
		stat.ReturnRate = decimal.NewFromInt(stat.ReturnedCount).
			Mul(hundred).
			Div(decimal.NewFromInt(stat.LoanCount)).
			Round(2)
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LoanCount != out[j].LoanCount {
			return out[i].LoanCount > out[j].LoanCount
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func statusDistribution(loans []models.Loan) []types.StatusCount {
	counts := map[enums.LoanStatus]int64{}
	for _, loan := range loans {
		counts[loan.Status]++
	}
	statuses := enums.LoanStatuses()
	out := make([]types.StatusCount, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, types.StatusCount{Status: status, Count: counts[status]})
	}
	return out
}

func damageByCategory(reports []models.DamageReport, itemsByID map[uuid.UUID]*models.Item) []types.DamageCategory {
	byCategory := map[string]*types.DamageCategory{}
	for _, report := range reports {
		item, ok := itemsByID[report.ItemID]
		if !ok {
			continue
		}
		entry, ok := byCategory[item.Category]
		if !ok {
			entry = &types.DamageCategory{Category: item.Category}
			byCategory[item.Category] = entry
		}
		entry.ReportCount++
		if report.Status == enums.DamageReportStatusPending {
			entry.PendingCount++
		}
	}
	out := make([]types.DamageCategory, 0, len(byCategory))
	for _, entry := range byCategory {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReportCount != out[j].ReportCount {
			return out[i].ReportCount > out[j].ReportCount
		}
		return out[i].Category < out[j].Category
	})
	return out
}
