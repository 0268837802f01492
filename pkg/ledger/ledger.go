package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mcclellann/credikhaata/pkg/derive"
	"github.com/mcclellann/credikhaata/pkg/logger"
	"github.com/mcclellann/credikhaata/pkg/models"
	"github.com/mcclellann/credikhaata/pkg/store"
	"github.com/mcclellann/credikhaata/pkg/validation"
	"github.com/shopspring/decimal"
)

var customerMessages = validation.Messages{
	"name.required":    "Name is required",
	"phone.required":   "Phone number is required",
	"phone.phone10":    "Please enter a valid 10-digit phone number",
	"address.required": "Address is required",
}

var loanMessages = validation.Messages{
	"item.required": "Item description is required",
}

type customerInput struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required,phone10"`
	Address string `json:"address" validate:"required"`
}

type loanInput struct {
	Item string `json:"item" validate:"required"`
}

// Ledger is the single source of truth for customers, their loans and
// repayments. Every mutation persists the whole snapshot before it becomes
// visible in memory.
type Ledger struct {
	mu        sync.Mutex
	storage   store.Storage
	validator *validation.Validator
	customers []models.Customer
	now       func() time.Time
	seedDemo  bool
}

type Option func(*Ledger)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithDemoSeed makes Load seed the demo customers when nothing is stored yet.
func WithDemoSeed(seed bool) Option {
	return func(l *Ledger) { l.seedDemo = seed }
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, opts ...Option) *Ledger {
	l := &Ledger{
		storage:   s,
		validator: validation.New(),
		customers: []models.Customer{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load restores the persisted snapshot, replacing in-memory state.
func (l *Ledger) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.storage.Get(ctx, store.KeyCustomers)
	if errors.Is(err, models.ErrNotFound) {
		if !l.seedDemo {
			l.customers = []models.Customer{}
			return nil
		}
		seed := DemoCustomers(l.now())
		if err := l.persist(ctx, seed); err != nil {
			return fmt.Errorf("failed to store demo customers: %w", err)
		}
		l.customers = seed
		logger.Info("Seeded %d demo customers", len(seed))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load customers: %w", err)
	}

	customers, err := decodeSnapshot(data)
	if err != nil {
		return err
	}
	l.customers = customers
	logger.Info("Loaded %d customers", len(customers))
	return nil
}

// AddCustomer validates and stores a new customer with no loans.
func (l *Ledger) AddCustomer(ctx context.Context, name, phone, address string) (customer models.Customer, err error) {
	defer func(start time.Time) { logger.LogOperation("AddCustomer", start, err) }(time.Now())

	in := customerInput{
		Name:    strings.TrimSpace(name),
		Phone:   strings.TrimSpace(phone),
		Address: strings.TrimSpace(address),
	}
	verr := models.NewValidationError()
	if err := l.validator.Struct(in, customerMessages, verr); err != nil {
		return models.Customer{}, err
	}
	if err := verr.ErrOrNil(); err != nil {
		return models.Customer{}, err
	}

	err = l.mutate(ctx, func(customers *[]models.Customer) error {
		customer = models.Customer{
			ID:               models.NewCustomerID(),
			Name:             in.Name,
			Phone:            in.Phone,
			Address:          in.Address,
			CreatedAt:        l.now(),
			Loans:            []models.Loan{},
			TotalOutstanding: decimal.Zero,
		}
		*customers = append(*customers, customer)
		return nil
	})
	if err != nil {
		return models.Customer{}, err
	}
	return customer.Clone(), nil
}

// GetCustomer returns a copy of the customer with the given id.
func (l *Ledger) GetCustomer(id string) (models.Customer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOfCustomer(l.customers, id)
	if i < 0 {
		return models.Customer{}, fmt.Errorf("customer %s: %w", id, models.ErrNotFound)
	}
	return l.customers[i].Clone(), nil
}

// ListCustomers returns copies of all customers in insertion order.
func (l *Ledger) ListCustomers() []models.Customer {
	l.mu.Lock()
	defer l.mu.Unlock()

	return models.CloneCustomers(l.customers)
}

// SearchCustomers returns customers whose name or phone contains term.
func (l *Ledger) SearchCustomers(term string) []models.Customer {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := []models.Customer{}
	for _, c := range l.customers {
		if derive.MatchesSearch(c, term) {
			out = append(out, c.Clone())
		}
	}
	return out
}

// AddLoan extends a new loan to an existing customer.
func (l *Ledger) AddLoan(ctx context.Context, customerID, item string, amount decimal.Decimal, dueDate time.Time) (loan models.Loan, err error) {
	defer func(start time.Time) { logger.LogOperation("AddLoan", start, err) }(time.Now())

	in := loanInput{Item: strings.TrimSpace(item)}
	verr := models.NewValidationError()
	if err := l.validator.Struct(in, loanMessages, verr); err != nil {
		return models.Loan{}, err
	}
	if !amount.IsPositive() {
		verr.Add("amount", "Please enter a valid amount")
	}
	if dueDate.IsZero() {
		verr.Add("dueDate", "Due date is required")
	}
	if err := verr.ErrOrNil(); err != nil {
		return models.Loan{}, err
	}

	err = l.mutate(ctx, func(customers *[]models.Customer) error {
		i := indexOfCustomer(*customers, customerID)
		if i < 0 {
			return fmt.Errorf("customer %s: %w", customerID, models.ErrNotFound)
		}
		c := &(*customers)[i]

		loan = models.Loan{
			ID:              models.NewLoanID(),
			Item:            in.Item,
			Amount:          amount,
			Date:            l.now(),
			DueDate:         dueDate,
			RemainingAmount: amount,
			Status:          models.LoanStatusActive,
			Repayments:      []models.Repayment{},
		}
		c.Loans = append(c.Loans, loan)
		derive.Recompute(c)
		return nil
	})
	if err != nil {
		return models.Loan{}, err
	}
	return loan.Clone(), nil
}

// AddRepayment records a repayment against an active loan. The amount may
// not exceed what is currently remaining on the loan.
func (l *Ledger) AddRepayment(ctx context.Context, customerID, loanID string, amount decimal.Decimal, note string) (repayment models.Repayment, err error) {
	defer func(start time.Time) { logger.LogOperation("AddRepayment", start, err) }(time.Now())

	if !amount.IsPositive() {
		verr := models.NewValidationError()
		verr.Add("amount", "Please enter a valid amount")
		return models.Repayment{}, verr
	}

	err = l.mutate(ctx, func(customers *[]models.Customer) error {
		i := indexOfCustomer(*customers, customerID)
		if i < 0 {
			return fmt.Errorf("customer %s: %w", customerID, models.ErrNotFound)
		}
		c := &(*customers)[i]

		j := indexOfLoan(c.Loans, loanID)
		if j < 0 {
			return fmt.Errorf("loan %s: %w", loanID, models.ErrNotFound)
		}
		loan := &c.Loans[j]

		verr := models.NewValidationError()
		if loan.Status == models.LoanStatusPaid {
			verr.Add("amount", "Loan is already paid")
		} else if amount.GreaterThan(loan.RemainingAmount) {
			verr.Add("amount", fmt.Sprintf("Amount cannot exceed the remaining balance (Rs. %s)", loan.RemainingAmount.StringFixed(2)))
		}
		if err := verr.ErrOrNil(); err != nil {
			return err
		}

		repayment = models.Repayment{
			ID:     models.NewRepaymentID(),
			Amount: amount,
			Date:   l.now(),
			Note:   strings.TrimSpace(note),
		}
		loan.Repayments = append(loan.Repayments, repayment)
		derive.Recompute(c)
		return nil
	})
	if err != nil {
		return models.Repayment{}, err
	}
	return repayment, nil
}

// mutate applies fn to a copy of the customer list, persists the copy and
// only then makes it current. If fn or the write fails nothing changes.
func (l *Ledger) mutate(ctx context.Context, fn func(customers *[]models.Customer) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := models.CloneCustomers(l.customers)
	if err := fn(&next); err != nil {
		return err
	}
	if err := l.persist(ctx, next); err != nil {
		return err
	}
	l.customers = next
	return nil
}

func (l *Ledger) persist(ctx context.Context, customers []models.Customer) error {
	data, err := encodeSnapshot(customers)
	if err != nil {
		return err
	}
	if err := l.storage.Put(ctx, store.KeyCustomers, data); err != nil {
		return fmt.Errorf("failed to persist customers: %w", err)
	}
	return nil
}

func indexOfCustomer(customers []models.Customer, id string) int {
	for i := range customers {
		if customers[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfLoan(loans []models.Loan, id string) int {
	for i := range loans {
		if loans[i].ID == id {
			return i
		}
	}
	return -1
}
