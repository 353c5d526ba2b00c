package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/bobmcallan/folio/internal/models"
)

func createPortfolio(t *testing.T, srv *Server, user string, cash float64) *models.Portfolio {
	t.Helper()
	var p models.Portfolio
	rec := do(t, srv, http.MethodPost, "/api/portfolios", user, map[string]interface{}{
		"name":                 "Main",
		"initial_cash_balance": cash,
	}, &p)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create portfolio: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return &p
}

func TestPortfolioLedgerFlow(t *testing.T) {
	srv := newTestServer(t)
	p := createPortfolio(t, srv, "alice", 10000)
	base := "/api/portfolios/" + p.ID

	var opened models.LedgerResult
	rec := do(t, srv, http.MethodPost, base+"/positions", "alice", map[string]interface{}{
		"symbol":     "aapl",
		"quantity":   10,
		"open_price": 150,
		"fee":        5,
	}, &opened)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if opened.PositionID == "" || opened.TradeID == "" {
		t.Fatalf("open: missing ids in %+v", opened)
	}

	var closed models.LedgerResult
	rec = do(t, srv, http.MethodPost, base+"/positions/"+opened.PositionID+"/close", "alice", map[string]interface{}{
		"close_price": 200,
		"quantity":    4,
	}, &closed)
	if rec.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if closed.PositionID == opened.PositionID {
		t.Error("partial close should produce a new slice position")
	}

	var got models.Portfolio
	do(t, srv, http.MethodGet, base, "alice", nil, &got)
	// 10000 - (1500 + 5) + 800
	if got.CashBalance != 9295 {
		t.Errorf("cash = %v, want 9295", got.CashBalance)
	}

	var open struct {
		Positions []*models.Position `json:"positions"`
	}
	do(t, srv, http.MethodGet, base+"/positions?status=open", "alice", nil, &open)
	if len(open.Positions) != 1 || open.Positions[0].Quantity != 6 {
		t.Fatalf("expected one open position of 6, got %+v", open.Positions)
	}

	var trades struct {
		Trades []*models.Trade `json:"trades"`
	}
	do(t, srv, http.MethodGet, base+"/trades", "alice", nil, &trades)
	if len(trades.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades.Trades))
	}

	rec = do(t, srv, http.MethodDelete, base+"/positions/"+closed.PositionID, "alice", nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	do(t, srv, http.MethodGet, base, "alice", nil, &got)
	// the sell trade went with the slice
	if got.CashBalance != 8495 {
		t.Errorf("cash after delete = %v, want 8495", got.CashBalance)
	}

	var cash map[string]interface{}
	rec = do(t, srv, http.MethodPost, base+"/cash/recalculate", "alice", nil, &cash)
	if rec.Code != http.StatusOK || cash["cash_balance"].(float64) != 8495 {
		t.Errorf("recalculate: got %d %v", rec.Code, cash)
	}

	var totals models.PortfolioTotals
	rec = do(t, srv, http.MethodPost, base+"/totals/recalculate", "alice", nil, &totals)
	if rec.Code != http.StatusOK || totals.TotalValue != 900 {
		t.Errorf("totals: got %d %+v", rec.Code, totals)
	}

	var report models.RecoveryReport
	rec = do(t, srv, http.MethodPost, base+"/recover", "alice", nil, &report)
	if rec.Code != http.StatusOK || report.CashAfter != 8495 {
		t.Errorf("recover: got %d %+v", rec.Code, report)
	}

	var valuation models.PortfolioValuation
	rec = do(t, srv, http.MethodGet, base+"/valuation", "alice", nil, &valuation)
	if rec.Code != http.StatusOK || valuation.NetWorth != 9395 {
		t.Errorf("valuation: got %d %+v", rec.Code, valuation)
	}

	var advice models.PortfolioAdvice
	rec = do(t, srv, http.MethodGet, base+"/advice", "alice", nil, &advice)
	if rec.Code != http.StatusOK || advice.PortfolioID != p.ID {
		t.Errorf("advice: got %d %+v", rec.Code, advice)
	}
}

func TestLedgerErrors_MapToStatus(t *testing.T) {
	srv := newTestServer(t)
	p := createPortfolio(t, srv, "alice", 1000)
	base := "/api/portfolios/" + p.ID

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   interface{}
		status int
		code   string
	}{
		{"zero quantity", http.MethodPost, base + "/positions", "alice", map[string]interface{}{"symbol": "X", "quantity": 0, "open_price": 1}, http.StatusBadRequest, "invalid_quantity"},
		{"zero price", http.MethodPost, base + "/positions", "alice", map[string]interface{}{"symbol": "X", "quantity": 1, "open_price": 0}, http.StatusBadRequest, "invalid_price"},
		{"unknown type", http.MethodPost, base + "/positions", "alice", map[string]interface{}{"symbol": "X", "quantity": 1, "open_price": 1, "type": "option"}, http.StatusBadRequest, "invalid_argument"},
		{"missing position", http.MethodPost, base + "/positions/nope/close", "alice", map[string]interface{}{"close_price": 1}, http.StatusNotFound, "not_found"},
		{"missing portfolio", http.MethodGet, "/api/portfolios/nope", "alice", nil, http.StatusNotFound, "not_found"},
		{"stranger write", http.MethodPost, base + "/positions", "mallory", map[string]interface{}{"symbol": "X", "quantity": 1, "open_price": 1}, http.StatusForbidden, "forbidden"},
		{"stranger read", http.MethodGet, base + "/trades", "mallory", nil, http.StatusForbidden, "forbidden"},
		{"no quote upstream", http.MethodGet, "/api/quotes/AAPL", "alice", nil, http.StatusBadGateway, "upstream_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.path, tt.user, tt.body, nil)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"code":"`+tt.code+`"`) {
				t.Errorf("expected code %s in %s", tt.code, rec.Body.String())
			}
		})
	}
}

func TestPortfolioUpdateAndDelete(t *testing.T) {
	srv := newTestServer(t)
	p := createPortfolio(t, srv, "alice", 500)
	base := "/api/portfolios/" + p.ID

	var updated models.Portfolio
	rec := do(t, srv, http.MethodPatch, base, "alice", map[string]interface{}{"goal": "retire", "public": true}, &updated)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", rec.Code)
	}
	if updated.Goal != "retire" || !updated.Public || updated.CashBalance != 500 {
		t.Errorf("unexpected update result: %+v", updated)
	}

	// public portfolios are readable by anyone but writable only by the owner
	if rec := do(t, srv, http.MethodGet, base, "bob", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("public read: expected 200, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodDelete, base, "bob", nil, nil); rec.Code != http.StatusForbidden {
		t.Errorf("stranger delete: expected 403, got %d", rec.Code)
	}

	var list struct {
		Portfolios []*models.Portfolio `json:"portfolios"`
	}
	do(t, srv, http.MethodGet, "/api/portfolios", "alice", nil, &list)
	if len(list.Portfolios) != 1 {
		t.Errorf("expected 1 portfolio, got %d", len(list.Portfolios))
	}

	if rec := do(t, srv, http.MethodDelete, base, "alice", nil, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, base, "alice", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("after delete: expected 404, got %d", rec.Code)
	}
}

func TestSuggestionConvertAndDismiss(t *testing.T) {
	srv := newTestServer(t)
	p := createPortfolio(t, srv, "alice", 5000)
	base := "/api/portfolios/" + p.ID

	var buy models.SuggestedTrade
	rec := do(t, srv, http.MethodPost, base+"/suggestions", "alice", map[string]interface{}{
		"symbol":          "VTI",
		"action":          "buy",
		"quantity":        10,
		"estimated_price": 200,
		"rationale":       "core holding",
	}, &buy)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create suggestion: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if buy.Status != models.SuggestionPending {
		t.Fatalf("expected pending, got %s", buy.Status)
	}

	var res models.ConvertResult
	rec = do(t, srv, http.MethodPost, "/api/suggestions/"+buy.ID+"/convert", "alice", nil, &res)
	if rec.Code != http.StatusOK {
		t.Fatalf("convert: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if res.PositionID == "" {
		t.Error("convert: missing position id")
	}

	var got models.Portfolio
	do(t, srv, http.MethodGet, base, "alice", nil, &got)
	if got.CashBalance != 3000 {
		t.Errorf("cash = %v, want 3000", got.CashBalance)
	}

	// converted is terminal
	rec = do(t, srv, http.MethodPost, "/api/suggestions/"+buy.ID+"/dismiss", "alice", map[string]string{"reason": "late"}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("dismiss converted: expected 409, got %d", rec.Code)
	}

	var other models.SuggestedTrade
	do(t, srv, http.MethodPost, base+"/suggestions", "alice", map[string]interface{}{"symbol": "BND", "quantity": 5, "estimated_price": 70}, &other)

	var dismissed models.SuggestedTrade
	rec = do(t, srv, http.MethodPost, "/api/suggestions/"+other.ID+"/dismiss", "alice", map[string]string{"reason": "not now"}, &dismissed)
	if rec.Code != http.StatusOK {
		t.Fatalf("dismiss: expected 200, got %d", rec.Code)
	}
	if dismissed.Status != models.SuggestionDismissed || dismissed.DismissalReason != "not now" {
		t.Errorf("unexpected dismissed suggestion: %+v", dismissed)
	}

	var pending struct {
		Suggestions []*models.SuggestedTrade `json:"suggestions"`
	}
	do(t, srv, http.MethodGet, base+"/suggestions?status=pending", "alice", nil, &pending)
	if len(pending.Suggestions) != 0 {
		t.Errorf("expected no pending suggestions, got %d", len(pending.Suggestions))
	}

	if rec := do(t, srv, http.MethodGet, base+"/suggestions?status=bogus", "alice", nil, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad status filter: expected 400, got %d", rec.Code)
	}
}

func TestGenerateSuggestions_NoGeneratorIs502(t *testing.T) {
	srv := newTestServer(t)
	p := createPortfolio(t, srv, "alice", 5000)

	rec := do(t, srv, http.MethodPost, "/api/portfolios/"+p.ID+"/suggestions/generate", "alice", nil, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestJobs_EnqueueAndList(t *testing.T) {
	srv := newTestServer(t)
	p := createPortfolio(t, srv, "alice", 100)

	var job models.Job
	rec := do(t, srv, http.MethodPost, "/api/portfolios/"+p.ID+"/recover?async=true", "alice", nil, &job)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("async recover: expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if job.JobType != models.JobTypeReconcilePortfolio || job.OwnerID != "alice" {
		t.Errorf("unexpected job: %+v", job)
	}

	rec = do(t, srv, http.MethodPost, "/api/jobs", "alice", map[string]string{"job_type": "bogus"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus job type: expected 400, got %d", rec.Code)
	}
	rec = do(t, srv, http.MethodPost, "/api/jobs", "bob", map[string]string{"job_type": models.JobTypeReconcilePortfolio, "portfolio_id": p.ID}, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger enqueue: expected 403, got %d", rec.Code)
	}

	var list struct {
		Jobs []*models.Job `json:"jobs"`
	}
	do(t, srv, http.MethodGet, "/api/jobs", "alice", nil, &list)
	if len(list.Jobs) != 1 {
		t.Errorf("alice: expected 1 job, got %d", len(list.Jobs))
	}
	do(t, srv, http.MethodGet, "/api/jobs", "bob", nil, &list)
	if len(list.Jobs) != 0 {
		t.Errorf("bob: expected 0 jobs, got %d", len(list.Jobs))
	}
}
