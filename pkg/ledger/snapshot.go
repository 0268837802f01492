package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcclellann/credikhaata/pkg/derive"
	"github.com/mcclellann/credikhaata/pkg/models"
	"github.com/shopspring/decimal"
)

// snapshotVersion is written with every snapshot. Version 0 is the
// unversioned format: a bare JSON array of customers.
const snapshotVersion = 1

type snapshot struct {
	Version   int               `json:"version"`
	Customers []models.Customer `json:"customers"`
}

func encodeSnapshot(customers []models.Customer) ([]byte, error) {
	data, err := json.Marshal(snapshot{Version: snapshotVersion, Customers: customers})
	if err != nil {
		return nil, fmt.Errorf("failed to encode customers: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) ([]models.Customer, error) {
	trimmed := bytes.TrimSpace(data)

	if bytes.HasPrefix(trimmed, []byte("[")) {
		var legacy []legacyCustomer
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return nil, fmt.Errorf("failed to decode unversioned customers: %w", err)
		}
		return migrateLegacy(legacy), nil
	}

	var snap snapshot
	if err := json.Unmarshal(trimmed, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode customers: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported customers snapshot version %d", snap.Version)
	}
	return normalize(snap.Customers), nil
}

// normalize replaces nil slices so that re-encoding yields [] rather than null.
func normalize(customers []models.Customer) []models.Customer {
	if customers == nil {
		return []models.Customer{}
	}
	for i := range customers {
		if customers[i].Loans == nil {
			customers[i].Loans = []models.Loan{}
		}
		for j := range customers[i].Loans {
			if customers[i].Loans[j].Repayments == nil {
				customers[i].Loans[j].Repayments = []models.Repayment{}
			}
		}
	}
	return customers
}

// legacyTime accepts the timestamps found in unversioned snapshots: full
// RFC 3339 values and bare YYYY-MM-DD dates from date inputs, which are
// taken as UTC midnight. Empty strings and null decode to the zero time.
type legacyTime time.Time

func (t *legacyTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid date %s: %w", data, err)
	}
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			*t = legacyTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", raw)
}

type legacyRepayment struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Date   legacyTime      `json:"date"`
	Note   string          `json:"note"`
}

type legacyLoan struct {
	ID         string            `json:"id"`
	Item       string            `json:"item"`
	Amount     decimal.Decimal   `json:"amount"`
	Date       legacyTime        `json:"date"`
	DueDate    legacyTime        `json:"dueDate"`
	Repayments []legacyRepayment `json:"repayments"`
}

type legacyCustomer struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Phone     string       `json:"phone"`
	Address   string       `json:"address"`
	CreatedAt legacyTime   `json:"createdAt"`
	Loans     []legacyLoan `json:"loans"`
}

// migrateLegacy converts unversioned customers. Stored balances and statuses
// are ignored and recomputed from the repayments.
func migrateLegacy(legacy []legacyCustomer) []models.Customer {
	customers := make([]models.Customer, 0, len(legacy))
	for _, lc := range legacy {
		c := models.Customer{
			ID:        lc.ID,
			Name:      lc.Name,
			Phone:     lc.Phone,
			Address:   lc.Address,
			CreatedAt: time.Time(lc.CreatedAt),
			Loans:     make([]models.Loan, 0, len(lc.Loans)),
		}
		for _, ll := range lc.Loans {
			loan := models.Loan{
				ID:         ll.ID,
				Item:       ll.Item,
				Amount:     ll.Amount,
				Date:       time.Time(ll.Date),
				DueDate:    time.Time(ll.DueDate),
				Repayments: make([]models.Repayment, 0, len(ll.Repayments)),
			}
			for _, lr := range ll.Repayments {
				loan.Repayments = append(loan.Repayments, models.Repayment{
					ID:     lr.ID,
					Amount: lr.Amount,
					Date:   time.Time(lr.Date),
					Note:   lr.Note,
				})
			}
			c.Loans = append(c.Loans, loan)
		}
		derive.Recompute(&c)
		customers = append(customers, c)
	}
	return customers
}
