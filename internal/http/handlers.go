package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"easybudget/internal/core"
)

type occurrencePayload struct {
	ID          int64   `json:"id,omitempty"`
	Kind        string  `json:"kind"`
	AccountID   int64   `json:"account_id"`
	Title       string  `json:"title"`
	AmountCents int64   `json:"amount_cents"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Category    string  `json:"category,omitempty"`
	TemplateID  int64   `json:"template_id,omitempty"`
}

func toOccurrencePayload(o core.Occurrence) occurrencePayload {
	return occurrencePayload{
		ID:          o.ID,
		Kind:        string(o.Kind),
		AccountID:   o.AccountID,
		Title:       o.Title,
		AmountCents: o.Amount.Cents,
		Amount:      o.Amount.Major(),
		Date:        o.Date.Key(),
		Category:    o.Category,
		TemplateID:  o.TemplateID,
	}
}

type expenseRequest struct {
	AccountID int64  `json:"account_id"`
	Title     string `json:"title"`
	Amount    string `json:"amount"` // decimal string, negative = revenue
	Date      string `json:"date"`   // YYYY-MM-DD
	Category  string `json:"category"`
}

func (req expenseRequest) toOccurrence() (core.Occurrence, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Occurrence{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Occurrence{}, fmt.Errorf("invalid date, expected YYYY-MM-DD: %w", core.ErrInvalidInput)
	}
	return core.Occurrence{
		Kind:      core.OccurrencePersisted,
		AccountID: req.AccountID,
		Title:     req.Title,
		Amount:    amount,
		Date:      date,
		Category:  req.Category,
	}, nil
}

type templateRequest struct {
	AccountID   int64  `json:"account_id"`
	Title       string `json:"title"`
	Amount      string `json:"amount"`
	AnchorDate  string `json:"anchor_date"`
	Granularity string `json:"granularity"`
	Modified    bool   `json:"modified"`
}

func (req templateRequest) toTemplate() (core.RecurringTemplate, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	anchor, err := core.ParseDate(req.AnchorDate)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("invalid anchor date, expected YYYY-MM-DD: %w", core.ErrInvalidInput)
	}
	return core.RecurringTemplate{
		AccountID:      req.AccountID,
		Title:          req.Title,
		OriginalAmount: amount,
		AnchorDate:     anchor,
		Granularity:    core.Granularity(req.Granularity),
		Modified:       req.Modified,
	}, nil
}

func (s *Server) handleGetExpenses(w http.ResponseWriter, r *http.Request) {
	date, accountID, err := parseDateAndAccount(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	occs, err := s.store.GetExpensesForDate(r.Context(), date, accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload := make([]occurrencePayload, 0, len(occs))
	for _, o := range occs {
		payload = append(payload, toOccurrencePayload(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":     date.Key(),
		"expenses": payload,
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	date, accountID, err := parseDateAndAccount(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	balance, err := s.store.GetBalance(r.Context(), date, accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":          date.Key(),
		"account_id":    accountID,
		"balance_cents": balance.Cents,
		"balance":       balance.Major(),
	})
}

func (s *Server) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	occ, err := req.toOccurrence()
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := s.store.RecordExpense(r.Context(), occ)
	if err != nil {
		writeError(w, r, err)
		return
	}
	occ.ID = id
	writeJSON(w, http.StatusCreated, toOccurrencePayload(occ))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, "invalid expense id")
		return
	}
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	occ, err := req.toOccurrence()
	if err != nil {
		writeError(w, r, err)
		return
	}
	occ.ID = id

	if err := s.store.UpdateExpense(r.Context(), occ); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOccurrencePayload(occ))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, "invalid expense id")
		return
	}
	if err := s.store.DeleteExpense(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	tpl, err := req.toTemplate()
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := s.store.RecordRecurringTemplate(r.Context(), tpl)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, "invalid template id")
		return
	}
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	tpl, err := req.toTemplate()
	if err != nil {
		writeError(w, r, err)
		return
	}
	tpl.ID = id

	if err := s.store.UpdateRecurringTemplate(r.Context(), tpl); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, "invalid template id")
		return
	}
	if err := s.store.DeleteRecurringTemplate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
