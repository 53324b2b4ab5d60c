package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"laba/internal/core"
	applog "laba/internal/log"
	"laba/internal/middleware/trace"
	"laba/internal/services"
)

// formFields prefills the transaction form; prices are already grouped.
type formFields struct {
	ProductName  string
	CostPrice    string
	SellPrice    string
	CustomerName string
}

type indexPage struct {
	View services.View
	Form formFields
}

type editPage struct {
	Index       int
	Transaction core.Transaction
	When        time.Time
	Form        formFields
}

type errorPage struct {
	Status    int
	Title     string
	Message   string
	Reference string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Refresh(r.Context()); err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "index.html", indexPage{View: s.ledger.View()})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	in, ok := s.parseInput(w, r)
	if !ok {
		return
	}
	if _, err := s.ledger.Add(r.Context(), in); err != nil {
		s.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}
	if err := s.ledger.Refresh(r.Context()); err != nil {
		s.renderError(w, r, err)
		return
	}
	t, err := s.ledger.Transaction(index)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "edit.html", editPage{
		Index:       index,
		Transaction: t,
		When:        t.Date.In(s.ledger.Location()),
		Form: formFields{
			ProductName:  t.ProductName,
			CostPrice:    core.GroupAmount(t.CostPrice),
			SellPrice:    core.GroupAmount(t.SellPrice),
			CustomerName: t.CustomerName,
		},
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}
	in, ok := s.parseInput(w, r)
	if !ok {
		return
	}
	if err := s.ledger.Update(r.Context(), index, in); err != nil {
		s.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}
	if err := s.ledger.Delete(r.Context(), index); err != nil {
		s.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handlePrevPage(w http.ResponseWriter, r *http.Request) {
	s.ledger.PrevPage()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	s.ledger.NextPage()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type apiRow struct {
	Index        int       `json:"index"`
	Number       int       `json:"number"`
	ProductName  string    `json:"productName"`
	CostPrice    int64     `json:"costPrice"`
	SellPrice    int64     `json:"sellPrice"`
	CustomerName string    `json:"customerName"`
	Date         time.Time `json:"date"`
	Profit       int64     `json:"profit"`
}

type apiLedger struct {
	Day                  string   `json:"day"`
	Page                 int      `json:"page"`
	TotalPages           int      `json:"totalPages"`
	RowsPerPage          int      `json:"rowsPerPage"`
	Count                int      `json:"count"`
	TotalProfit          int64    `json:"totalProfit"`
	TotalProfitFormatted string   `json:"totalProfitFormatted"`
	Rows                 []apiRow `json:"rows"`
}

func (s *Server) handleAPILedger(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Refresh(r.Context()); err != nil {
		s.writeJSON(w, r, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	v := s.ledger.View()
	out := apiLedger{
		Day:                  v.Day.String(),
		Page:                 v.Page,
		TotalPages:           v.TotalPages,
		RowsPerPage:          v.RowsPerPage,
		Count:                v.Summary.Count,
		TotalProfit:          v.Summary.TotalProfit,
		TotalProfitFormatted: core.FormatMoney(v.Summary.TotalProfit),
		Rows:                 make([]apiRow, len(v.Rows)),
	}
	for i, row := range v.Rows {
		out.Rows[i] = apiRow{
			Index:        row.Index,
			Number:       row.Number,
			ProductName:  row.Transaction.ProductName,
			CostPrice:    row.Transaction.CostPrice,
			SellPrice:    row.Transaction.SellPrice,
			CustomerName: row.Transaction.CustomerName,
			Date:         row.Transaction.Date,
			Profit:       row.Profit,
		}
	}
	s.writeJSON(w, r, http.StatusOK, out)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	m := s.tracer.Snapshot()
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":        "ok",
		"timestamp":     time.Now().Format(time.RFC3339),
		"uptime":        time.Since(s.started).Round(time.Second).String(),
		"requests":      m.TotalRequests,
		"server_errors": m.ServerErrors,
	})
}

// handleReady runs every registered dependency check
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = "failed: " + err.Error()
			status = "not_ready"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}

	s.writeJSON(w, r, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) parseInput(w http.ResponseWriter, r *http.Request) (services.Input, bool) {
	if err := r.ParseForm(); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Parse form error", applog.FieldError, err)
		s.render(w, r, http.StatusBadRequest, "error.html", errorPage{
			Status:  http.StatusBadRequest,
			Title:   "Bad request",
			Message: "The form could not be read.",
		})
		return services.Input{}, false
	}
	return services.Input{
		ProductName:  strings.TrimSpace(r.PostForm.Get("productName")),
		CostPrice:    r.PostForm.Get("costPrice"),
		SellPrice:    r.PostForm.Get("sellPrice"),
		CustomerName: strings.TrimSpace(r.PostForm.Get("customerName")),
	}, true
}

// pathIndex reads {index}. Anything that is not a non-negative integer
// cannot address a row and is reported like an out of range index.
func (s *Server) pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.PathValue("index")
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		s.renderError(w, r, core.ErrOutOfRange)
		return 0, false
	}
	return index, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidDate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	page := errorPage{Status: code, Reference: trace.RequestID(r.Context())}
	switch code {
	case http.StatusNotFound:
		page.Title = "Transaction not found"
		page.Message = "That row no longer exists. The ledger may have changed or been reset for a new day."
	case http.StatusUnprocessableEntity:
		page.Title = "Invalid transaction"
		page.Message = err.Error()
	default:
		page.Title = "Something went wrong"
		page.Message = "The ledger could not be saved or loaded. Please try again."
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", applog.FieldError, err)
	}
	s.render(w, r, code, "error.html", page)
}

// render executes into a buffer so a template failure can still become a 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, code int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err,
			"template", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response", applog.FieldError, err)
	}
}
