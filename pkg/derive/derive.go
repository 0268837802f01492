// Package derive computes every value that is a function of ledger data:
// remaining balances, outstanding totals, due status and the dashboard
// aggregates. Nothing here touches storage or the clock; callers pass now.
package derive

import (
	"sort"
	"strings"
	"time"

	"github.com/mcclellann/credikhaata/pkg/models"
	"github.com/shopspring/decimal"
)

// DueStatus classifies loan at now.
func DueStatus(loan models.Loan, now time.Time) models.DueStatus {
	if loan.Status == models.LoanStatusPaid {
		return models.DueStatusPaid
	}
	if loan.DueDate.Before(now) {
		return models.DueStatusOverdue
	}
	return models.DueStatusUpcoming
}

// RemainingAmount is max(0, amount - sum of repayments).
func RemainingAmount(loan models.Loan) decimal.Decimal {
	repaid := decimal.Zero
	for _, r := range loan.Repayments {
		repaid = repaid.Add(r.Amount)
	}
	remaining := loan.Amount.Sub(repaid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// TotalOutstanding sums the remaining amount of every loan.
func TotalOutstanding(customer models.Customer) decimal.Decimal {
	total := decimal.Zero
	for _, l := range customer.Loans {
		total = total.Add(l.RemainingAmount)
	}
	return total
}

// Recompute refreshes remaining amount and status of every loan and the
// customer's cached outstanding total.
func Recompute(customer *models.Customer) {
	for i := range customer.Loans {
		loan := &customer.Loans[i]
		loan.RemainingAmount = RemainingAmount(*loan)
		if loan.RemainingAmount.IsZero() {
			loan.Status = models.LoanStatusPaid
		} else {
			loan.Status = models.LoanStatusActive
		}
	}
	customer.TotalOutstanding = TotalOutstanding(*customer)
}

// StatusLabel is the label printed on statements.
func StatusLabel(loan models.Loan, now time.Time) string {
	switch DueStatus(loan, now) {
	case models.DueStatusPaid:
		return "Paid"
	case models.DueStatusOverdue:
		return "Overdue"
	default:
		return "Active"
	}
}

// LoanRef points at a loan together with its owner.
type LoanRef struct {
	CustomerID   string      `json:"customerId"`
	CustomerName string      `json:"customerName"`
	Loan         models.Loan `json:"loan"`
}

// OverdueLoans returns the active loans past due, earliest due date first.
func OverdueLoans(customers []models.Customer, now time.Time) []LoanRef {
	return filterLoans(customers, now, models.DueStatusOverdue)
}

// UpcomingLoans returns the active loans not yet due, earliest due date first.
func UpcomingLoans(customers []models.Customer, now time.Time) []LoanRef {
	return filterLoans(customers, now, models.DueStatusUpcoming)
}

func filterLoans(customers []models.Customer, now time.Time, want models.DueStatus) []LoanRef {
	refs := []LoanRef{}
	for _, c := range customers {
		for _, l := range c.Loans {
			if DueStatus(l, now) == want {
				refs = append(refs, LoanRef{CustomerID: c.ID, CustomerName: c.Name, Loan: l.Clone()})
			}
		}
	}
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Loan.DueDate.Before(refs[j].Loan.DueDate)
	})
	return refs
}

type Badge string

const (
	BadgeOverdue Badge = "Overdue"
	BadgeCleared Badge = "Cleared"
	BadgeActive  Badge = "Active"
)

// CustomerBadge summarizes a customer for the dashboard list.
func CustomerBadge(customer models.Customer, now time.Time) Badge {
	for _, l := range customer.Loans {
		if DueStatus(l, now) == models.DueStatusOverdue {
			return BadgeOverdue
		}
	}
	if customer.TotalOutstanding.IsZero() {
		return BadgeCleared
	}
	return BadgeActive
}

type LoanCounts struct {
	Active  int `json:"active"`
	Paid    int `json:"paid"`
	Overdue int `json:"overdue"`
}

// CountLoans tallies a customer's loans by status.
func CountLoans(customer models.Customer, now time.Time) LoanCounts {
	var counts LoanCounts
	for _, l := range customer.Loans {
		switch DueStatus(l, now) {
		case models.DueStatusPaid:
			counts.Paid++
		case models.DueStatusOverdue:
			counts.Overdue++
			counts.Active++
		default:
			counts.Active++
		}
	}
	return counts
}

type Summary struct {
	CustomerCount    int             `json:"customerCount"`
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"`
	ActiveLoans      int             `json:"activeLoans"`
	PaidLoans        int             `json:"paidLoans"`
	OverdueCount     int             `json:"overdueCount"`
	UpcomingCount    int             `json:"upcomingCount"`
}

// Summarize builds the dashboard cards.
func Summarize(customers []models.Customer, now time.Time) Summary {
	s := Summary{CustomerCount: len(customers), TotalOutstanding: decimal.Zero}
	for _, c := range customers {
		s.TotalOutstanding = s.TotalOutstanding.Add(c.TotalOutstanding)
		counts := CountLoans(c, now)
		s.ActiveLoans += counts.Active
		s.PaidLoans += counts.Paid
		s.OverdueCount += counts.Overdue
		s.UpcomingCount += counts.Active - counts.Overdue
	}
	return s
}

// MatchesSearch reports whether term matches the customer's name
// (case-insensitive) or phone. An empty term matches everyone.
func MatchesSearch(customer models.Customer, term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(customer.Name), strings.ToLower(term)) ||
		strings.Contains(customer.Phone, term)
}
