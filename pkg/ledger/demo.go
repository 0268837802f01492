package ledger

import (
	"time"

	"github.com/mcclellann/credikhaata/pkg/derive"
	"github.com/mcclellann/credikhaata/pkg/models"
	"github.com/shopspring/decimal"
)

// DemoCustomers returns the sample ledger shown on first start. Dates are
// relative to now so the data always has overdue and upcoming loans.
func DemoCustomers(now time.Time) []models.Customer {
	yesterday := now.AddDate(0, 0, -1)
	lastWeek := now.AddDate(0, 0, -7)
	nextWeek := now.AddDate(0, 0, 7)
	nextMonth := now.AddDate(0, 0, 30)

	loan := func(item string, amount int64, date, due time.Time, repayments ...models.Repayment) models.Loan {
		if repayments == nil {
			repayments = []models.Repayment{}
		}
		return models.Loan{
			ID:         models.NewLoanID(),
			Item:       item,
			Amount:     decimal.NewFromInt(amount),
			Date:       date,
			DueDate:    due,
			Repayments: repayments,
		}
	}
	repayment := func(amount int64, date time.Time, note string) models.Repayment {
		return models.Repayment{ID: models.NewRepaymentID(), Amount: decimal.NewFromInt(amount), Date: date, Note: note}
	}

	customers := []models.Customer{
		{
			ID:        models.NewCustomerID(),
			Name:      "John Doe",
			Phone:     "9876543210",
			Address:   "123 Main St, City",
			CreatedAt: lastWeek,
			Loans: []models.Loan{
				loan("Flour and Sugar", 500, lastWeek, nextWeek, repayment(200, yesterday, "Partial payment")),
				loan("Rice Bag", 550, yesterday, nextMonth),
			},
		},
		{
			ID:        models.NewCustomerID(),
			Name:      "Jane Smith",
			Phone:     "8765432109",
			Address:   "456 Elm St, Town",
			CreatedAt: now.AddDate(0, -2, 0),
			Loans: []models.Loan{
				loan("Groceries", 300, lastWeek, yesterday, repayment(300, yesterday, "Full payment")),
			},
		},
		{
			ID:        models.NewCustomerID(),
			Name:      "Robert Johnson",
			Phone:     "7654321098",
			Address:   "789 Oak St, Village",
			CreatedAt: now.AddDate(0, -1, 0),
			Loans: []models.Loan{
				loan("Monthly Groceries", 1500, lastWeek, yesterday),
			},
		},
		{
			ID:        models.NewCustomerID(),
			Name:      "Mary Williams",
			Phone:     "6543210987",
			Address:   "101 Pine St, Suburb",
			CreatedAt: now.AddDate(0, 0, -15),
			Loans: []models.Loan{
				loan("Vegetables", 200, yesterday, nextWeek),
			},
		},
	}

	for i := range customers {
		derive.Recompute(&customers[i])
	}
	return customers
}
