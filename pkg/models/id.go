package models

import (
	"fmt"

	"github.com/google/uuid"
	"go.jetify.com/typeid/v2"
)

const (
	PrefixCustomer  = "cust"
	PrefixLoan      = "loan"
	PrefixRepayment = "rpay"
)

// NewID returns a K-sortable typeid such as "loan_01h2xcejqtf2nbrexx3vqjhp41".
func NewID(prefix string) string {
	tid, err := typeid.Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("models: invalid id prefix %q: %v", prefix, err))
	}
	return tid.String()
}

func NewCustomerID() string  { return NewID(PrefixCustomer) }
func NewLoanID() string      { return NewID(PrefixLoan) }
func NewRepaymentID() string { return NewID(PrefixRepayment) }

func NewSessionID() string { return uuid.NewString() }
