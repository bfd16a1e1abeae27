package loans

import "github.com/angelmondragon/labinventory-backend/pkg/enums"

// stockEffect is what a status change does to the item's shelf count.
type stockEffect int

const (
	stockNone stockEffect = iota
	stockTake
	stockRestore
)

// Stock leaves the shelf when a request is first accepted (approved, or
// handed over directly) and comes back when the loan is returned.
var transitions = map[enums.LoanStatus]map[enums.LoanStatus]stockEffect{
	enums.LoanStatusPending: {
		enums.LoanStatusApproved: stockTake,
		enums.LoanStatusBorrowed: stockTake,
	},
	enums.LoanStatusApproved: {
		enums.LoanStatusBorrowed: stockNone,
		enums.LoanStatusReturned: stockRestore,
	},
	enums.LoanStatusBorrowed: {
		enums.LoanStatusReturned: stockRestore,
	},
}

func lookupTransition(from, to enums.LoanStatus) (stockEffect, bool) {
	effect, ok := transitions[from][to]
	return effect, ok
}

// CanTransition reports whether a loan in from may move to to.
func CanTransition(from, to enums.LoanStatus) bool {
	_, ok := lookupTransition(from, to)
	return ok
}

// NextStatuses lists the statuses reachable from from.
func NextStatuses(from enums.LoanStatus) []enums.LoanStatus {
	out := []enums.LoanStatus{}
	for _, candidate := range enums.LoanStatuses() {
		if CanTransition(from, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}
