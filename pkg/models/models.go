package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusActive LoanStatus = "active"
	LoanStatusPaid   LoanStatus = "paid"
)

// DueStatus classifies a loan relative to the current time. It is always
// derived on read and never stored.
type DueStatus string

const (
	DueStatusPaid     DueStatus = "paid"
	DueStatusOverdue  DueStatus = "overdue"
	DueStatusUpcoming DueStatus = "upcoming"
)

type Customer struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Phone            string          `json:"phone"`
	Address          string          `json:"address"`
	CreatedAt        time.Time       `json:"createdAt"`
	Loans            []Loan          `json:"loans"`
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"` // Cached sum of loan remaining amounts
}

type Loan struct {
	ID              string          `json:"id"`
	Item            string          `json:"item"`
	Amount          decimal.Decimal `json:"amount"` // Original principal, never changes
	Date            time.Time       `json:"date"`
	DueDate         time.Time       `json:"dueDate"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	Status          LoanStatus      `json:"status"`
	Repayments      []Repayment     `json:"repayments"`
}

type Repayment struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
	Note   string          `json:"note,omitempty"`
}

// Session is the signed-in shopkeeper.
type Session struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	ShopName string    `json:"shopName"`
	Token    string    `json:"token,omitempty"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Clone returns a deep copy of the customer, including loans and repayments.
func (c Customer) Clone() Customer {
	out := c
	out.Loans = make([]Loan, len(c.Loans))
	for i, l := range c.Loans {
		out.Loans[i] = l.Clone()
	}
	return out
}

// Clone returns a deep copy of the loan.
func (l Loan) Clone() Loan {
	out := l
	out.Repayments = make([]Repayment, len(l.Repayments))
	copy(out.Repayments, l.Repayments)
	return out
}

// Repaid is the principal paid back so far.
func (l Loan) Repaid() decimal.Decimal {
	return l.Amount.Sub(l.RemainingAmount)
}

// CloneCustomers deep-copies a customer list.
func CloneCustomers(customers []Customer) []Customer {
	out := make([]Customer, len(customers))
	for i, c := range customers {
		out[i] = c.Clone()
	}
	return out
}
