package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mcclellann/credikhaata/pkg/models"
	"github.com/mcclellann/credikhaata/pkg/store"
	"github.com/shopspring/decimal"
)

// MockStore is a simple in-memory implementation of the Storage interface for testing.
type MockStore struct {
	slots   map[string][]byte
	puts    int
	failPut bool
}

func NewMockStore() *MockStore {
	return &MockStore{slots: make(map[string][]byte)}
}

func (m *MockStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.slots[key]
	if !ok {
		return nil, fmt.Errorf("slot %s: %w", key, models.ErrNotFound)
	}
	return v, nil
}

func (m *MockStore) Put(_ context.Context, key string, value []byte) error {
	if m.failPut {
		return errors.New("disk full")
	}
	m.puts++
	m.slots[key] = append([]byte(nil), value...)
	return nil
}

func (m *MockStore) Delete(_ context.Context, key string) error {
	delete(m.slots, key)
	return nil
}

func (m *MockStore) Close() error {
	return nil
}

var fixedNow = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*Ledger, *MockStore) {
	t.Helper()
	s := NewMockStore()
	l := NewLedger(s, WithClock(func() time.Time { return fixedNow }))
	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("Failed to load ledger: %v", err)
	}
	return l, s
}

func assertInvariants(t *testing.T, l *Ledger) {
	t.Helper()
	for _, c := range l.ListCustomers() {
		sum := decimal.Zero
		for _, loan := range c.Loans {
			sum = sum.Add(loan.RemainingAmount)
			if (loan.Status == models.LoanStatusPaid) != loan.RemainingAmount.IsZero() {
				t.Errorf("Loan %s: status %s with remaining %s", loan.ID, loan.Status, loan.RemainingAmount)
			}
			if loan.RemainingAmount.IsNegative() || loan.RemainingAmount.GreaterThan(loan.Amount) {
				t.Errorf("Loan %s: remaining %s outside [0, %s]", loan.ID, loan.RemainingAmount, loan.Amount)
			}
		}
		if !c.TotalOutstanding.Equal(sum) {
			t.Errorf("Customer %s: total %s, expected %s", c.ID, c.TotalOutstanding, sum)
		}
	}
}

func TestAddCustomer(t *testing.T) {
	l, s := newTestLedger(t)
	ctx := context.Background()

	c, err := l.AddCustomer(ctx, "  Ramesh Kumar ", "9876543210", "12 Market Road")
	if err != nil {
		t.Fatalf("Failed to add customer: %v", err)
	}

	if c.ID == "" || c.Name != "Ramesh Kumar" {
		t.Errorf("Unexpected customer %+v", c)
	}
	if !c.TotalOutstanding.IsZero() || len(c.Loans) != 0 {
		t.Errorf("Expected new customer with no loans, got %+v", c)
	}
	if !c.CreatedAt.Equal(fixedNow) {
		t.Errorf("Expected createdAt %v, got %v", fixedNow, c.CreatedAt)
	}
	if s.puts != 1 {
		t.Errorf("Expected 1 snapshot write, got %d", s.puts)
	}

	fetched, err := l.GetCustomer(c.ID)
	if err != nil {
		t.Fatalf("Failed to get customer: %v", err)
	}
	if fetched.Phone != "9876543210" {
		t.Errorf("Expected phone 9876543210, got %s", fetched.Phone)
	}
}

func TestAddCustomer_Validation(t *testing.T) {
	l, s := newTestLedger(t)

	_, err := l.AddCustomer(context.Background(), "", "123", "x")
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if verr.Fields["name"] != "Name is required" {
		t.Errorf("Expected name message, got %q", verr.Fields["name"])
	}
	if verr.Fields["phone"] != "Please enter a valid 10-digit phone number" {
		t.Errorf("Expected phone message, got %q", verr.Fields["phone"])
	}
	if _, ok := verr.Fields["address"]; ok {
		t.Error("Did not expect an address error")
	}

	if _, err := l.AddCustomer(context.Background(), "A", "9876543210", "   "); !models.IsValidation(err) {
		t.Errorf("Expected whitespace address to be rejected, got %v", err)
	}

	if len(l.ListCustomers()) != 0 || s.puts != 0 {
		t.Error("Expected rejected customers not to be stored")
	}
}

func TestGetCustomer_NotFound(t *testing.T) {
	l, _ := newTestLedger(t)

	if _, err := l.GetCustomer("cust_missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAddLoan(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	c, _ := l.AddCustomer(ctx, "Ramesh", "9876543210", "Road")

	due := fixedNow.AddDate(0, 0, 30)
	loan, err := l.AddLoan(ctx, c.ID, "Rice Bag", decimal.NewFromInt(550), due)
	if err != nil {
		t.Fatalf("Failed to add loan: %v", err)
	}

	if loan.Status != models.LoanStatusActive || !loan.RemainingAmount.Equal(decimal.NewFromInt(550)) {
		t.Errorf("Unexpected loan %+v", loan)
	}
	if !loan.Date.Equal(fixedNow) || !loan.DueDate.Equal(due) {
		t.Errorf("Unexpected loan dates %v / %v", loan.Date, loan.DueDate)
	}

	l.AddLoan(ctx, c.ID, "Flour", decimal.NewFromInt(500), due)
	c, _ = l.GetCustomer(c.ID)
	if !c.TotalOutstanding.Equal(decimal.NewFromInt(1050)) {
		t.Errorf("Expected total outstanding 1050, got %s", c.TotalOutstanding)
	}
	if c.Loans[0].Item != "Rice Bag" || c.Loans[1].Item != "Flour" {
		t.Error("Expected loans in insertion order")
	}
	assertInvariants(t, l)
}

func TestAddLoan_Errors(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	c, _ := l.AddCustomer(ctx, "Ramesh", "9876543210", "Road")

	_, err := l.AddLoan(ctx, c.ID, " ", decimal.NewFromInt(-5), time.Time{})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 3 {
		t.Errorf("Expected item, amount and dueDate errors, got %v", verr.Fields)
	}

	_, err = l.AddLoan(ctx, "cust_missing", "Rice", decimal.NewFromInt(5), fixedNow)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAddRepayment(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	c, _ := l.AddCustomer(ctx, "Ramesh", "9876543210", "Road")
	loan, _ := l.AddLoan(ctx, c.ID, "Flour", decimal.NewFromInt(500), fixedNow.AddDate(0, 0, -1))

	r, err := l.AddRepayment(ctx, c.ID, loan.ID, decimal.NewFromInt(200), " Partial payment ")
	if err != nil {
		t.Fatalf("Failed to record repayment: %v", err)
	}
	if r.Note != "Partial payment" || !r.Date.Equal(fixedNow) {
		t.Errorf("Unexpected repayment %+v", r)
	}

	c, _ = l.GetCustomer(c.ID)
	if !c.Loans[0].RemainingAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected remaining 300, got %s", c.Loans[0].RemainingAmount)
	}

	// Bound is the current remaining amount, not the original principal
	_, err = l.AddRepayment(ctx, c.ID, loan.ID, decimal.NewFromInt(301), "")
	if !models.IsValidation(err) {
		t.Fatalf("Expected ValidationError for 301, got %v", err)
	}

	if _, err := l.AddRepayment(ctx, c.ID, loan.ID, decimal.NewFromInt(300), ""); err != nil {
		t.Fatalf("Failed to repay remaining 300: %v", err)
	}
	c, _ = l.GetCustomer(c.ID)
	if !c.Loans[0].RemainingAmount.IsZero() || c.Loans[0].Status != models.LoanStatusPaid {
		t.Errorf("Expected loan paid off, got %+v", c.Loans[0])
	}
	if len(c.Loans[0].Repayments) != 2 {
		t.Errorf("Expected 2 repayments, got %d", len(c.Loans[0].Repayments))
	}

	if _, err := l.AddRepayment(ctx, c.ID, loan.ID, decimal.NewFromInt(1), ""); !models.IsValidation(err) {
		t.Errorf("Expected repaying a paid loan to fail validation, got %v", err)
	}
	assertInvariants(t, l)
}

func TestAddRepayment_Errors(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	c, _ := l.AddCustomer(ctx, "Ramesh", "9876543210", "Road")
	loan, _ := l.AddLoan(ctx, c.ID, "Flour", decimal.NewFromInt(500), fixedNow)

	if _, err := l.AddRepayment(ctx, c.ID, loan.ID, decimal.Zero, ""); !models.IsValidation(err) {
		t.Errorf("Expected zero amount to fail validation, got %v", err)
	}
	if _, err := l.AddRepayment(ctx, "cust_missing", loan.ID, decimal.NewFromInt(1), ""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for customer, got %v", err)
	}
	if _, err := l.AddRepayment(ctx, c.ID, "loan_missing", decimal.NewFromInt(1), ""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for loan, got %v", err)
	}
}

func TestReturnedEntitiesAreCopies(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	c, _ := l.AddCustomer(ctx, "Ramesh", "9876543210", "Road")
	l.AddLoan(ctx, c.ID, "Flour", decimal.NewFromInt(500), fixedNow)

	got, _ := l.GetCustomer(c.ID)
	got.Name = "Changed"
	got.Loans[0].RemainingAmount = decimal.Zero

	again, _ := l.GetCustomer(c.ID)
	if again.Name != "Ramesh" || again.Loans[0].RemainingAmount.IsZero() {
		t.Error("Expected store state to be unaffected by caller mutation")
	}
}

func TestFailedPersistLeavesStateUntouched(t *testing.T) {
	l, s := newTestLedger(t)
	ctx := context.Background()
	c, _ := l.AddCustomer(ctx, "Ramesh", "9876543210", "Road")
	loan, _ := l.AddLoan(ctx, c.ID, "Flour", decimal.NewFromInt(500), fixedNow)
	before := string(s.slots[store.KeyCustomers])

	s.failPut = true
	if _, err := l.AddRepayment(ctx, c.ID, loan.ID, decimal.NewFromInt(100), ""); err == nil {
		t.Fatal("Expected persistence failure")
	}
	if _, err := l.AddCustomer(ctx, "Suresh", "9876543211", "Lane"); err == nil {
		t.Fatal("Expected persistence failure")
	}

	got, _ := l.GetCustomer(c.ID)
	if len(got.Loans[0].Repayments) != 0 || !got.TotalOutstanding.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected in-memory state unchanged, got %+v", got)
	}
	if len(l.ListCustomers()) != 1 {
		t.Errorf("Expected 1 customer, got %d", len(l.ListCustomers()))
	}
	if string(s.slots[store.KeyCustomers]) != before {
		t.Error("Expected persisted snapshot unchanged")
	}
}

func TestPersistRoundTrip(t *testing.T) {
	l, s := newTestLedger(t)
	ctx := context.Background()
	c, _ := l.AddCustomer(ctx, "Ramesh", "9876543210", "Road")
	loan, _ := l.AddLoan(ctx, c.ID, "Flour", decimal.RequireFromString("499.50"), fixedNow.AddDate(0, 0, 3))
	l.AddRepayment(ctx, c.ID, loan.ID, decimal.RequireFromString("99.50"), "cash")
	l.AddCustomer(ctx, "Suresh", "9876543211", "Lane")

	reloaded := NewLedger(s)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}

	want := l.ListCustomers()
	got := reloaded.ListCustomers()
	if len(got) != len(want) {
		t.Fatalf("Expected %d customers, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID || !got[i].TotalOutstanding.Equal(want[i].TotalOutstanding) {
			t.Errorf("Customer %d: got %s/%s, want %s/%s", i, got[i].ID, got[i].TotalOutstanding, want[i].ID, want[i].TotalOutstanding)
		}
		if !got[i].CreatedAt.Equal(want[i].CreatedAt) || len(got[i].Loans) != len(want[i].Loans) {
			t.Errorf("Customer %d differs after reload", i)
		}
		for j := range want[i].Loans {
			gl, wl := got[i].Loans[j], want[i].Loans[j]
			if gl.ID != wl.ID || !gl.RemainingAmount.Equal(wl.RemainingAmount) || gl.Status != wl.Status || len(gl.Repayments) != len(wl.Repayments) {
				t.Errorf("Loan %s differs after reload", wl.ID)
			}
		}
	}
	assertInvariants(t, reloaded)
}

func TestLoad_UnversionedSnapshot(t *testing.T) {
	s := NewMockStore()
	s.slots[store.KeyCustomers] = []byte(`[{"id":"1","name":"John Doe","phone":"9876543210","address":"123 Main St",
		"createdAt":"2026-10-08T10:00:00Z","totalOutstanding":300,
		"loans":[{"id":"l1","item":"Flour and Sugar","amount":500,"date":"2026-10-08T10:00:00Z",
		"dueDate":"2026-10-22T10:00:00Z","remainingAmount":300,"status":"active",
		"repayments":[{"id":"r1","amount":200,"date":"2026-10-14T10:00:00Z","note":"Partial payment"}]}]}]`)

	l := NewLedger(s)
	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("Failed to load unversioned snapshot: %v", err)
	}
	c, err := l.GetCustomer("1")
	if err != nil {
		t.Fatalf("Expected migrated customer: %v", err)
	}
	if !c.Loans[0].RemainingAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected remaining 300, got %s", c.Loans[0].RemainingAmount)
	}

	// Next write upgrades the stored format
	l.AddCustomer(context.Background(), "Jane", "8765432109", "Elm St")
	if s.slots[store.KeyCustomers][0] != '{' {
		t.Error("Expected versioned snapshot after write")
	}
}

func TestLoad_UnversionedDateOnlyDueDate(t *testing.T) {
	s := NewMockStore()
	s.slots[store.KeyCustomers] = []byte(`[{"id":"abc1234","name":"Asha Devi","phone":"9876543210","address":"Market Road",
		"createdAt":"2026-10-01T08:30:00.000Z","totalOutstanding":999,
		"loans":[
			{"id":"l1","item":"Rice","amount":500,"date":"2026-10-01T08:30:00.000Z","dueDate":"2026-10-22",
			 "remainingAmount":500,"status":"active","repayments":[{"id":"r1","amount":500,"date":"2026-10-10T09:00:00.000Z"}]},
			{"id":"l2","item":"Oil","amount":"120.50","date":"2026-10-02T08:30:00.000Z","dueDate":"2026-10-14",
			 "remainingAmount":120.5,"status":"active","repayments":[]}
		]}]`)

	l := NewLedger(s)
	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("Failed to load unversioned snapshot with date-only due dates: %v", err)
	}
	c, err := l.GetCustomer("abc1234")
	if err != nil {
		t.Fatalf("Expected migrated customer: %v", err)
	}

	wantDue := time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC)
	if !c.Loans[0].DueDate.Equal(wantDue) {
		t.Errorf("Expected due date %v, got %v", wantDue, c.Loans[0].DueDate)
	}
	if c.Loans[0].Status != models.LoanStatusPaid || !c.Loans[0].RemainingAmount.IsZero() {
		t.Errorf("Expected fully repaid loan to be recomputed as paid, got %s / %s", c.Loans[0].Status, c.Loans[0].RemainingAmount)
	}
	if !c.TotalOutstanding.Equal(decimal.RequireFromString("120.5")) {
		t.Errorf("Expected outstanding 120.5 recomputed from loans, got %s", c.TotalOutstanding)
	}
	assertInvariants(t, l)
}

func TestLoad_UnversionedBadDate(t *testing.T) {
	s := NewMockStore()
	s.slots[store.KeyCustomers] = []byte(`[{"id":"1","name":"A","loans":[{"id":"l1","amount":5,"dueDate":"22/10/2026"}]}]`)

	if err := NewLedger(s).Load(context.Background()); err == nil {
		t.Error("Expected error for unparseable due date")
	}
}

func TestLoad_UnknownVersion(t *testing.T) {
	s := NewMockStore()
	s.slots[store.KeyCustomers] = []byte(`{"version":7,"customers":[]}`)

	if err := NewLedger(s).Load(context.Background()); err == nil {
		t.Error("Expected error for unknown snapshot version")
	}
}

func TestLoad_SeedsDemoCustomers(t *testing.T) {
	s := NewMockStore()
	l := NewLedger(s, WithDemoSeed(true), WithClock(func() time.Time { return fixedNow }))
	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	customers := l.ListCustomers()
	if len(customers) != 4 {
		t.Fatalf("Expected 4 demo customers, got %d", len(customers))
	}
	if !customers[0].TotalOutstanding.Equal(decimal.NewFromInt(850)) {
		t.Errorf("Expected John Doe to owe 850, got %s", customers[0].TotalOutstanding)
	}
	if _, ok := s.slots[store.KeyCustomers]; !ok {
		t.Error("Expected demo customers to be persisted")
	}
	assertInvariants(t, l)

	// A stored snapshot is never reseeded
	l.AddCustomer(context.Background(), "Extra", "9999999999", "Somewhere")
	again := NewLedger(s, WithDemoSeed(true))
	again.Load(context.Background())
	if len(again.ListCustomers()) != 5 {
		t.Errorf("Expected stored customers to win over seed, got %d", len(again.ListCustomers()))
	}
}

func TestSearchCustomers(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	l.AddCustomer(ctx, "John Doe", "9876543210", "Main St")
	l.AddCustomer(ctx, "Jane Smith", "8765432109", "Elm St")

	if got := l.SearchCustomers("jane"); len(got) != 1 || got[0].Name != "Jane Smith" {
		t.Errorf("Expected Jane by name, got %+v", got)
	}
	if got := l.SearchCustomers("98765"); len(got) != 1 || got[0].Name != "John Doe" {
		t.Errorf("Expected John by phone, got %+v", got)
	}
	if got := l.SearchCustomers(""); len(got) != 2 {
		t.Errorf("Expected all customers for empty term, got %d", len(got))
	}
}
