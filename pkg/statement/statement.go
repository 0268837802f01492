// Package statement renders a customer's ledger as a PDF statement.
package statement

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/mcclellann/credikhaata/pkg/derive"
	"github.com/mcclellann/credikhaata/pkg/models"
	"github.com/shopspring/decimal"
)

const (
	Title      = "CrediKhaata"
	Disclaimer = "This is a computer generated statement and does not require a signature."

	margin       = 14.0
	footerHeight = 18.0
	loanRowH     = 7.0
	repayRowH    = 6.0
	dateLayout   = "02 Jan 2006"
)

var (
	loanHeaders  = []string{"Item", "Date", "Amount", "Repaid", "Remaining", "Due Date", "Status"}
	loanWidths   = []float64{40, 22, 24, 24, 24, 24, 24}
	repayHeaders = []string{"Date", "Amount", "Note"}
	repayWidths  = []float64{35, 35, 112}

	whitespace = regexp.MustCompile(`\s+`)
)

// Document is a finished statement.
type Document struct {
	FileName string
	Pages    int
	Data     []byte
}

type Formatter struct {
	now      func() time.Time
	compress bool
	font     string
}

type Option func(*Formatter)

func WithClock(now func() time.Time) Option {
	return func(f *Formatter) { f.now = now }
}

// WithFont selects one of the PDF core font families (Helvetica, Times,
// Courier).
func WithFont(family string) Option {
	return func(f *Formatter) { f.font = family }
}

// WithCompression toggles stream compression. Disabled output is easier to
// inspect.
func WithCompression(on bool) Option {
	return func(f *Formatter) { f.compress = on }
}

func New(opts ...Option) *Formatter {
	f := &Formatter{now: time.Now, compress: true, font: "Helvetica"}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FileName is the download name for customer's statement.
func FileName(customer models.Customer) string {
	return whitespace.ReplaceAllString(customer.Name, "_") + "_Statement.pdf"
}

// Render builds the statement for customer. On any failure it returns a
// *models.RenderError and no document.
func (f *Formatter) Render(customer models.Customer, shopName string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = &models.RenderError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	now := f.now()
	r := newRenderer(f.compress, f.font, now)
	r.header(customer, shopName)
	r.loanTable(customer.Loans)
	for _, loan := range customer.Loans {
		if len(loan.Repayments) > 0 {
			r.repaymentTable(loan)
		}
	}

	var buf bytes.Buffer
	pages := r.pdf.PageNo()
	if err := r.pdf.Output(&buf); err != nil {
		return nil, &models.RenderError{Err: err}
	}
	return &Document{FileName: FileName(customer), Pages: pages, Data: buf.Bytes()}, nil
}

type renderer struct {
	pdf   *fpdf.Fpdf
	font  string
	tr    func(string) string
	now   time.Time
	pageH float64
}

func newRenderer(compress bool, font string, now time.Time) *renderer {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(compress)
	pdf.SetCreationDate(now)
	pdf.SetMargins(margin, 15, margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AliasNbPages("")
	pdf.SetTitle(Title+" Statement", false)

	r := &renderer{
		pdf:  pdf,
		font: font,
		tr:   pdf.UnicodeTranslatorFromDescriptor(""),
		now:  now,
	}
	_, r.pageH = pdf.GetPageSize()

	pdf.SetFooterFunc(func() {
		pdf.SetFont(r.font, "", 8)
		pdf.SetTextColor(150, 150, 150)
		pdf.SetY(-15)
		pdf.CellFormat(0, 5, Disclaimer, "", 1, "C", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	return r
}

// fits reports whether h more millimetres fit above the footer.
func (r *renderer) fits(h float64) bool {
	return r.pdf.GetY()+h <= r.pageH-footerHeight
}

func (r *renderer) header(c models.Customer, shopName string) {
	pdf := r.pdf

	pdf.SetFont(r.font, "B", 20)
	pdf.SetTextColor(41, 98, 255)
	pdf.CellFormat(0, 10, Title, "", 1, "C", false, 0, "")

	pdf.SetFont(r.font, "", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 9, "Customer Statement", "", 1, "C", false, 0, "")

	pdf.SetFont(r.font, "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.CellFormat(0, 6, "Generated on: "+r.now.Format(dateLayout), "", 1, "L", false, 0, "")
	if shopName != "" {
		pdf.CellFormat(0, 6, r.tr("Shop: "+shopName), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	pdf.SetFont(r.font, "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, "Customer Information:", "", 1, "L", false, 0, "")

	pdf.SetFont(r.font, "", 10)
	for _, line := range []string{
		"Name: " + c.Name,
		"Phone: " + c.Phone,
		"Address: " + c.Address,
		"Outstanding Amount: " + money(c.TotalOutstanding),
	} {
		pdf.CellFormat(0, 6, r.tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont(r.font, "B", 12)
	pdf.CellFormat(0, 7, "Loan Summary:", "", 1, "L", false, 0, "")
}

func (r *renderer) loanTable(loans []models.Loan) {
	r.tableHeader(loanHeaders, loanWidths, loanRowH, 41, 98, 255)

	for i, loan := range loans {
		if !r.fits(loanRowH) {
			r.pdf.AddPage()
			r.tableHeader(loanHeaders, loanWidths, loanRowH, 41, 98, 255)
		}

		label := derive.StatusLabel(loan, r.now)
		cells := []string{
			loan.Item,
			loan.Date.Format(dateLayout),
			money(loan.Amount),
			money(loan.Repaid()),
			money(loan.RemainingAmount),
			loan.DueDate.Format(dateLayout),
			label,
		}
		r.pdf.SetFont(r.font, "", 8)
		r.pdf.SetFillColor(245, 245, 245)
		for j, text := range cells {
			switch {
			case j == 6 && label == "Overdue":
				r.pdf.SetTextColor(220, 38, 38)
			case j == 6 && label == "Paid":
				r.pdf.SetTextColor(34, 197, 94)
			default:
				r.pdf.SetTextColor(0, 0, 0)
			}
			r.pdf.CellFormat(loanWidths[j], loanRowH, r.fit(text, loanWidths[j]), "1", 0, "L", i%2 == 1, 0, "")
		}
		r.pdf.Ln(-1)
	}
	if len(loans) == 0 {
		r.pdf.SetFont(r.font, "I", 8)
		r.pdf.SetTextColor(100, 100, 100)
		r.pdf.CellFormat(sum(loanWidths), loanRowH, "No loans recorded", "1", 1, "C", false, 0, "")
	}
}

func (r *renderer) repaymentTable(loan models.Loan) {
	const headingH = 6.0
	r.pdf.Ln(8)
	// Heading, column header and one row stay together.
	if !r.fits(headingH + 2*repayRowH) {
		r.pdf.AddPage()
	}

	r.pdf.SetFont(r.font, "B", 10)
	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.CellFormat(0, headingH, r.tr("Repayment History for: "+loan.Item), "", 1, "L", false, 0, "")
	r.tableHeader(repayHeaders, repayWidths, repayRowH, 100, 116, 139)

	for _, rep := range loan.Repayments {
		if !r.fits(repayRowH) {
			r.pdf.AddPage()
			r.tableHeader(repayHeaders, repayWidths, repayRowH, 100, 116, 139)
		}
		note := rep.Note
		if note == "" {
			note = "-"
		}
		r.pdf.SetFont(r.font, "", 8)
		r.pdf.SetTextColor(0, 0, 0)
		for j, text := range []string{rep.Date.Format(dateLayout), money(rep.Amount), note} {
			r.pdf.CellFormat(repayWidths[j], repayRowH, r.fit(text, repayWidths[j]), "1", 0, "L", false, 0, "")
		}
		r.pdf.Ln(-1)
	}
}

func (r *renderer) tableHeader(headers []string, widths []float64, h float64, red, green, blue int) {
	r.pdf.SetFont(r.font, "B", 8)
	r.pdf.SetFillColor(red, green, blue)
	r.pdf.SetTextColor(255, 255, 255)
	for i, text := range headers {
		r.pdf.CellFormat(widths[i], h, text, "1", 0, "L", true, 0, "")
	}
	r.pdf.Ln(-1)
}

// fit translates text for the core fonts and truncates it to the cell width.
func (r *renderer) fit(text string, width float64) string {
	text = r.tr(text)
	limit := width - 2
	if r.pdf.GetStringWidth(text) <= limit {
		return text
	}
	for len(text) > 0 && r.pdf.GetStringWidth(text+"...") > limit {
		text = text[:len(text)-1]
	}
	return strings.TrimSpace(text) + "..."
}

func money(d decimal.Decimal) string {
	return "Rs. " + d.StringFixed(2)
}

func sum(ws []float64) float64 {
	total := 0.0
	for _, w := range ws {
		total += w
	}
	return total
}
