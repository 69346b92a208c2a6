package inventory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-resale/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-resale/internal/shared"
)

func newTestRouter(t *testing.T) (http.Handler, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	return routerFor(newTestService(repo, Deps{})), repo
}

func routerFor(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithOwner(req.Context(), owner)))
		})
	})
	r.Route("/inventory", NewHandler(nil, svc).MountRoutes)
	return r
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	return p
}

func TestHandlerInboundOutboundFlow(t *testing.T) {
	h, _ := newTestRouter(t)

	rr := doRequest(h, http.MethodPost, "/inventory/inbound",
		`{"received_ymd":"2024-03-01","lines":[{"product_id":"p","size":"260","qty":3,"purchase_price":100000}]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created struct {
		Lots []Lot `json:"lots"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Len(t, created.Lots, 1)

	rr = doRequest(h, http.MethodGet, "/inventory/available?product_id=p&size=260", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"product_id":"p","size":"260","available":3}`, rr.Body.String())

	rr = doRequest(h, http.MethodPost, "/inventory/outbound",
		`{"lines":[{"product_id":"p","size":"260","qty":5,"unit_price":150000}]}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, http.StatusConflict, decodeProblem(t, rr).Status)

	rr = doRequest(h, http.MethodPost, "/inventory/outbound",
		`{"date":"2024-03-05","lines":[{"product_id":"p","size":"260","qty":2,"unit_price":150000}]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doRequest(h, http.MethodGet, "/inventory/stock", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var stock struct {
		Items []AggregateRow `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stock))
	require.Len(t, stock.Items, 1)
	require.Equal(t, 1, stock.Items[0].Qty)

	rr = doRequest(h, http.MethodPost, "/inventory/lots/"+created.Lots[0].ID+"/exchange", `{"to_size":"270","qty":1}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doRequest(h, http.MethodGet, "/inventory/events?type=outbound,exchange", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var events eventsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
	require.Len(t, events.Items, 2)
	require.Equal(t, 2, events.Pagination.Total)

	rr = doRequest(h, http.MethodGet, "/inventory/events?per_page=1&page=2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
	require.Len(t, events.Items, 1)
	require.Equal(t, 2, events.Pagination.Page)
	require.Equal(t, 3, events.Pagination.TotalPages)

	rr = doRequest(h, http.MethodGet, "/inventory/purchases", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var purchases purchasesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &purchases))
	require.Len(t, purchases.Rows, 2)
}

func TestHandlerErrorMapping(t *testing.T) {
	h, _ := newTestRouter(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"malformed json", http.MethodPost, "/inventory/inbound", `{"lines":`, http.StatusBadRequest},
		{"validation", http.MethodPost, "/inventory/inbound", `{"lines":[{"product_id":"p","size":"260","qty":0}]}`, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/inventory/inbound", `{"received_ymd":"1/3/2024","lines":[{"product_id":"p","size":"260","qty":1}]}`, http.StatusBadRequest},
		{"missing query", http.MethodGet, "/inventory/available?product_id=p", "", http.StatusBadRequest},
		{"unknown event type", http.MethodGet, "/inventory/events?type=transfer", "", http.StatusBadRequest},
		{"unknown lot", http.MethodPost, "/inventory/lots/nope/return", `{"qty":1}`, http.StatusNotFound},
		{"unknown lot confirm", http.MethodPost, "/inventory/lots/nope/confirm", `{"qty":1}`, http.StatusNotFound},
		{"empty outbound", http.MethodPost, "/inventory/outbound", `{"lines":[]}`, http.StatusBadRequest},
		{"bad outbound date", http.MethodPost, "/inventory/outbound", `{"date":"5/3/2024","lines":[{"product_id":"p","size":"260","qty":1,"unit_price":1}]}`, http.StatusBadRequest},
		{"unknown sale", http.MethodPost, "/inventory/sales/nope/settle", `{"unit_price":1000}`, http.StatusNotFound},
		{"settle without price", http.MethodPost, "/inventory/sales/nope/settle", `{}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(h, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			require.Equal(t, tc.status, decodeProblem(t, rr).Status)
		})
	}
}

func TestHandlerReturnExceedingHeadroom(t *testing.T) {
	h, repo := newTestRouter(t)
	rr := doRequest(h, http.MethodPost, "/inventory/inbound", `{"lines":[{"product_id":"p","size":"260","qty":1}]}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	lotID := repo.lots[owner][0].ID

	rr = doRequest(h, http.MethodPost, "/inventory/lots/"+lotID+"/return", `{"qty":2}`)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = doRequest(h, http.MethodPost, "/inventory/lots/"+lotID+"/return", `{"qty":1}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, repo.lots[owner])
}

func TestHandlerSettleDeferredSale(t *testing.T) {
	h, _ := newTestRouter(t)
	rr := doRequest(h, http.MethodPost, "/inventory/inbound", `{"lines":[{"product_id":"p","size":"260","qty":2,"purchase_price":100000}]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doRequest(h, http.MethodGet, "/inventory/returnable", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var returnable struct {
		Items []Lot `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &returnable))
	require.Len(t, returnable.Items, 1)

	rr = doRequest(h, http.MethodPost, "/inventory/outbound", `{"deferred":true,"lines":[{"product_id":"p","size":"260","qty":1}]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var shipped struct {
		Sales []Sale `json:"sales"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &shipped))
	require.Len(t, shipped.Sales, 1)
	require.True(t, shipped.Sales[0].Deferred)

	path := "/inventory/sales/" + shipped.Sales[0].ID + "/settle"
	rr = doRequest(h, http.MethodPost, path, `{"unit_price":130000}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var sale Sale
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sale))
	require.False(t, sale.Deferred)
	require.Equal(t, 130000.0, sale.TotalRevenue)

	rr = doRequest(h, http.MethodPost, path, `{"unit_price":130000}`)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = doRequest(h, http.MethodGet, "/inventory/sales", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"deferred":false`)
	require.NotContains(t, rr.Body.String(), `"deferred":true`)
}

func TestHandlerReconciliationDriftIsConflict(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &memorySeq{}, ServiceConfig{Clock: func() time.Time { return fixedNow }, DriftPolicy: DriftStrict}, Deps{})
	h := routerFor(svc)
	repo.events[owner] = []Event{
		{ID: "in", Type: EventInbound, Date: fixedNow, ProductID: "p", Size: "260", Qty: 1},
		{ID: "ret", Type: EventReturn, Date: fixedNow.Add(time.Hour), ProductID: "p", Size: "260", Qty: 2},
	}

	rr := doRequest(h, http.MethodGet, "/inventory/purchases", "")
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
	require.Equal(t, http.StatusConflict, decodeProblem(t, rr).Status)
}
