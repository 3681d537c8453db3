package http

import (
	"context"
	"net/http"
	"strconv"

	"kakeibo/internal/core"
	applog "kakeibo/internal/log"
)

// materializeResponse is an ApplyResult plus how this request obtained it.
type materializeResponse struct {
	core.ApplyResult
	Shared bool `json:"shared,omitempty"`
}

type skippedResponse struct {
	Skipped bool           `json:"skipped"`
	OwnerID string         `json:"owner_id"`
	Month   core.YearMonth `json:"month"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

// owner writes a 401 and returns false when the owner header is missing.
func owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := OwnerFromRequest(r)
	if err != nil {
		UnauthorizedError(err.Error()).Write(w)
		return "", false
	}
	return id, true
}

func monthParam(w http.ResponseWriter, r *http.Request) (core.YearMonth, bool) {
	month, err := ParseMonthPath(r)
	if err != nil {
		FromError(err).Write(w)
		return core.YearMonth{}, false
	}
	return month, true
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := ParseIDPath(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := DecodeJSON(w, r, dst); err != nil {
		if core.IsValidationError(err) {
			FromError(err).Write(w)
		} else {
			BadRequestError(err.Error()).Write(w)
		}
		return false
	}
	return true
}

func serviceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if !core.IsValidationError(err) {
		ctx := r.Context()
		applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, "Request failed", err,
			applog.ComponentHTTP, op,
			applog.NewFields().WithFailureClass(string(core.ClassifyFailure(err))))
	}
	FromError(err).Write(w)
}

// handleMaterialize runs the month's recurring rules for the owner. The
// first request for a (owner, month) pair in this process does the work;
// later ones are skipped unless force=1.
func (s *Server) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	month, ok := monthParam(w, r)
	if !ok {
		return
	}

	force := r.URL.Query().Get("force") == "1"
	if !force && !s.trigger.ShouldAttempt(ownerID, month) {
		NewJSONResponse().Body(skippedResponse{Skipped: true, OwnerID: ownerID, Month: month}).Write(w)
		return
	}

	result, shared, err := s.trigger.Do(r.Context(), ownerID, month, func(ctx context.Context) (core.ApplyResult, error) {
		return s.ledger.MaterializeMonth(ctx, ownerID, month)
	})
	if err != nil {
		serviceError(w, r, applog.OpMaterialize, err)
		return
	}
	if result.Applied > 0 {
		s.summaries.Invalidate(ownerID, month)
	}
	if !shared {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogMaterialized(r.Context(),
			ownerID, month.String(), result.Applied, result.Duplicates, len(result.Failures))
	}

	status := http.StatusOK
	if result.HasFailures() {
		status = http.StatusMultiStatus
	}
	NewJSONResponse().Status(status).Body(materializeResponse{ApplyResult: result, Shared: shared}).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	month, ok := monthParam(w, r)
	if !ok {
		return
	}

	if summary, hit := s.summaries.Get(ownerID, month); hit {
		NewJSONResponse().Header("X-Cache", "HIT").Body(summary).Write(w)
		return
	}
	summary, err := s.ledger.SummarizeMonth(r.Context(), ownerID, month)
	if err != nil {
		serviceError(w, r, applog.OpSummarize, err)
		return
	}
	s.summaries.Set(summary)
	NewJSONResponse().Header("X-Cache", "MISS").Body(summary).Write(w)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	entries, err := s.ledger.ListEntries(r.Context(), ownerID, month)
	if err != nil {
		serviceError(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(newList(entries)).Write(w)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	var req EntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	candidate, err := req.Candidate(ownerID, s.now())
	if err != nil {
		FromError(err).Write(w)
		return
	}
	entry, err := s.ledger.RecordEntry(r.Context(), candidate)
	if err != nil {
		serviceError(w, r, applog.OpCreate, err)
		return
	}
	s.summaries.Invalidate(ownerID, entry.Date.YearMonth())
	NewJSONResponse().Status(http.StatusCreated).
		Header("Location", "/api/entries/"+strconv.FormatInt(entry.ID, 10)).
		Body(entry).Write(w)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	entry, err := s.ledger.GetEntry(r.Context(), ownerID, id)
	if err != nil {
		serviceError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(entry).Write(w)
}

// handleDeleteEntry removes an entry. Deleting a materialized entry frees
// its month slot, so the next forced materialization recreates it.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeleteEntry(r.Context(), ownerID, id); err != nil {
		serviceError(w, r, applog.OpDelete, err)
		return
	}
	s.summaries.InvalidateOwner(ownerID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	rules, err := s.ledger.ListRules(r.Context(), ownerID)
	if err != nil {
		serviceError(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(newList(rules)).Write(w)
}

// handleCreateRule stores a rule and clears the owner's trigger so the next
// materialize request picks it up.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	var req RuleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rule, err := req.Rule(ownerID, s.now())
	if err != nil {
		FromError(err).Write(w)
		return
	}
	rule, err = s.ledger.CreateRule(r.Context(), rule)
	if err != nil {
		serviceError(w, r, applog.OpCreate, err)
		return
	}
	s.trigger.ResetOwner(ownerID)
	NewJSONResponse().Status(http.StatusCreated).
		Header("Location", "/api/rules/"+strconv.FormatInt(rule.ID, 10)).
		Body(rule).Write(w)
}

// handleDeleteRule removes a rule. Entries it already produced stay.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeleteRule(r.Context(), ownerID, id); err != nil {
		serviceError(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
