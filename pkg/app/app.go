// Package app wires storage, ledger, session provider and statement
// formatter into one explicitly owned application context.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mcclellann/credikhaata/pkg/config"
	"github.com/mcclellann/credikhaata/pkg/derive"
	"github.com/mcclellann/credikhaata/pkg/ledger"
	"github.com/mcclellann/credikhaata/pkg/logger"
	"github.com/mcclellann/credikhaata/pkg/models"
	"github.com/mcclellann/credikhaata/pkg/session"
	"github.com/mcclellann/credikhaata/pkg/statement"
	"github.com/mcclellann/credikhaata/pkg/store"
	"github.com/robfig/cron/v3"
)

type App struct {
	Storage    store.Storage
	Ledger     *ledger.Ledger
	Sessions   session.Provider
	Statements *statement.Formatter

	now  func() time.Time
	cron *cron.Cron
}

// New builds an App on top of an already opened Storage.
func New(cfg *config.Config, s store.Storage) (*App, error) {
	sessions, err := session.NewMockProvider(s, cfg.Session.Secret, cfg.Session.Delay)
	if err != nil {
		return nil, err
	}
	return &App{
		Storage:    s,
		Ledger:     ledger.NewLedger(s, ledger.WithDemoSeed(cfg.Ledger.SeedDemo)),
		Sessions:   sessions,
		Statements: statement.New(),
		now:        time.Now,
	}, nil
}

// Open opens the configured storage and builds an App on it.
func Open(cfg *config.Config) (*App, error) {
	s, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	a, err := New(cfg, s)
	if err != nil {
		s.Close()
		return nil, err
	}
	return a, nil
}

// Restore loads persisted ledger and session state. It must finish before
// the app starts serving requests.
func (a *App) Restore(ctx context.Context) error {
	if err := a.Ledger.Load(ctx); err != nil {
		return err
	}
	return a.Sessions.Restore(ctx)
}

// Dashboard is everything the landing page shows.
type Dashboard struct {
	Summary   derive.Summary     `json:"summary"`
	Overdue   []derive.LoanRef   `json:"overdue"`
	Upcoming  []derive.LoanRef   `json:"upcoming"`
	Customers []CustomerListItem `json:"customers"`
}

type CustomerListItem struct {
	models.Customer
	Badge derive.Badge `json:"badge"`
}

// Dashboard computes the dashboard for customers matching search.
func (a *App) Dashboard(search string) Dashboard {
	now := a.now()
	all := a.Ledger.ListCustomers()

	d := Dashboard{
		Summary:   derive.Summarize(all, now),
		Overdue:   derive.OverdueLoans(all, now),
		Upcoming:  derive.UpcomingLoans(all, now),
		Customers: []CustomerListItem{},
	}
	for _, c := range all {
		if derive.MatchesSearch(c, search) {
			d.Customers = append(d.Customers, CustomerListItem{Customer: c, Badge: derive.CustomerBadge(c, now)})
		}
	}
	return d
}

// CustomerDetail is one customer with the figures shown on its page.
type CustomerDetail struct {
	models.Customer
	Badge  derive.Badge      `json:"badge"`
	Counts derive.LoanCounts `json:"counts"`
}

func (a *App) CustomerDetail(id string) (CustomerDetail, error) {
	c, err := a.Ledger.GetCustomer(id)
	if err != nil {
		return CustomerDetail{}, err
	}
	now := a.now()
	return CustomerDetail{Customer: c, Badge: derive.CustomerBadge(c, now), Counts: derive.CountLoans(c, now)}, nil
}

// Statement renders the PDF statement for one customer.
func (a *App) Statement(customerID string) (*statement.Document, error) {
	c, err := a.Ledger.GetCustomer(customerID)
	if err != nil {
		return nil, err
	}
	shop := ""
	if s, ok := a.Sessions.Current(); ok {
		shop = s.ShopName
	}
	doc, err := a.Statements.Render(c, shop)
	if err != nil {
		logger.Error("Statement for customer %s failed: %v", customerID, err)
		return nil, err
	}
	return doc, nil
}

// OverdueDigest logs every overdue loan grouped by customer and returns how
// many there were.
func (a *App) OverdueDigest() int {
	overdue := derive.OverdueLoans(a.Ledger.ListCustomers(), a.now())
	if len(overdue) == 0 {
		logger.Info("Overdue digest: no overdue loans")
		return 0
	}
	for _, ref := range overdue {
		logger.Info("Overdue digest: %s owes Rs. %s for %q (due %s)",
			ref.CustomerName, ref.Loan.RemainingAmount.StringFixed(2), ref.Loan.Item, ref.Loan.DueDate.Format("2006-01-02"))
	}
	logger.Info("Overdue digest: %d overdue loans", len(overdue))
	return len(overdue)
}

// StartDigest schedules OverdueDigest on spec. An empty spec disables it.
func (a *App) StartDigest(spec string) error {
	if spec == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { a.OverdueDigest() }); err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", spec, err)
	}
	c.Start()
	a.cron = c
	logger.Info("Overdue digest scheduled: %s", spec)
	return nil
}

// Close stops background jobs and closes storage.
func (a *App) Close() error {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	return a.Storage.Close()
}
