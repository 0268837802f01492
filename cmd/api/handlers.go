package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mcclellann/credikhaata/pkg/logger"
	"github.com/mcclellann/credikhaata/pkg/models"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}

	sess, err := s.app.Sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrAuthentication) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) signupHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		ShopName string `json:"shopName"`
	}
	if !decode(w, r, &req) {
		return
	}

	sess, err := s.app.Sessions.Signup(r.Context(), req.Name, req.Email, req.Password, req.ShopName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Sessions.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Dashboard(r.URL.Query().Get("q")))
}

func (s *Server) listCustomersHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Ledger.SearchCustomers(r.URL.Query().Get("q")))
}

func (s *Server) createCustomerHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
	}
	if !decode(w, r, &req) {
		return
	}

	customer, err := s.app.Ledger.AddCustomer(r.Context(), req.Name, req.Phone, req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (s *Server) getCustomerHandler(w http.ResponseWriter, r *http.Request) {
	detail, err := s.app.CustomerDetail(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item    string          `json:"item"`
		Amount  decimal.Decimal `json:"amount"`
		DueDate string          `json:"dueDate"`
	}
	if !decode(w, r, &req) {
		return
	}

	var due time.Time
	if req.DueDate != "" {
		parsed, err := time.Parse(dateLayout, req.DueDate)
		if err != nil {
			verr := models.NewValidationError()
			verr.Add("dueDate", "Due date must be in YYYY-MM-DD format")
			writeError(w, verr)
			return
		}
		due = parsed
	}

	loan, err := s.app.Ledger.AddLoan(r.Context(), mux.Vars(r)["id"], req.Item, req.Amount, due)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) recordRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Note   string          `json:"note"`
	}
	if !decode(w, r, &req) {
		return
	}

	repayment, err := s.app.Ledger.AddRepayment(r.Context(), vars["id"], vars["loanId"], req.Amount, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, repayment)
}

func (s *Server) statementHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := s.app.Statement(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	w.Header().Set("Content-Length", fmt.Sprint(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Data)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP responses. Details of unexpected
// failures are logged, never returned.
func writeError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": verr.Error(), "fields": verr.Fields})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrAuthentication):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication failed"})
	case errors.Is(err, models.ErrRender):
		logger.Error("Statement rendering failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to generate the statement, please try again"})
	default:
		logger.Error("Request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Something went wrong, please try again"})
	}
}
