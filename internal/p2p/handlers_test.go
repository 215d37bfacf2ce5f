package p2p

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestRouter(svc *Service, caller string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc)
	v1 := r.Group("/v1")
	h.RegisterRoutes(v1)
	authed := r.Group("/v1")
	authed.Use(func(c *gin.Context) {
		c.Set("authAccountAddr", caller)
		c.Next()
	})
	h.RegisterProtectedRoutes(authed)
	h.RegisterAdminRoutes(r.Group("/v1"))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := map[string]json.RawMessage{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestHandlerGetTransfer(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")
	r := newTestRouter(svc, buyerAddr)

	w, body := doJSON(t, r, http.MethodGet, "/v1/transfers/"+tr.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var got Transfer
	if err := json.Unmarshal(body["transfer"], &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != tr.ID || got.Status != StatusPending {
		t.Errorf("got %+v", got)
	}

	w, _ = doJSON(t, r, http.MethodGet, "/v1/transfers/p2p_missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing transfer: status = %d, want 404", w.Code)
	}
}

func TestHandlerRemaining(t *testing.T) {
	svc, _ := newTestService()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	setNow(svc, base)
	tr := mustCreate(t, svc, "ord_1")
	r := newTestRouter(svc, buyerAddr)

	w, body := doJSON(t, r, http.MethodGet, "/v1/transfers/"+tr.ID+"/remaining", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var secs int64
	if err := json.Unmarshal(body["remainingSeconds"], &secs); err != nil {
		t.Fatal(err)
	}
	if secs != 900 {
		t.Errorf("remainingSeconds = %d, want 900", secs)
	}

	// Terminal state reports null.
	if _, err := svc.Cancel(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatal(err)
	}
	w, body = doJSON(t, r, http.MethodGet, "/v1/transfers/"+tr.ID+"/remaining", nil)
	if w.Code != http.StatusOK || string(body["remainingSeconds"]) != "null" {
		t.Errorf("status = %d, remainingSeconds = %s, want null", w.Code, body["remainingSeconds"])
	}
}

func TestHandlerPayReleaseFlow(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")

	buyer := newTestRouter(svc, buyerAddr)
	seller := newTestRouter(svc, sellerAddr)

	w, _ := doJSON(t, buyer, http.MethodPost, "/v1/transfers/"+tr.ID+"/pay", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pay: status = %d, body = %s", w.Code, w.Body.String())
	}

	// Buyer cannot release.
	w, _ = doJSON(t, buyer, http.MethodPost, "/v1/transfers/"+tr.ID+"/release", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("buyer release: status = %d, want 403", w.Code)
	}

	w, _ = doJSON(t, seller, http.MethodPost, "/v1/transfers/"+tr.ID+"/release", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("seller release: status = %d, body = %s", w.Code, w.Body.String())
	}

	// Releasing twice conflicts.
	w, _ = doJSON(t, seller, http.MethodPost, "/v1/transfers/"+tr.ID+"/release", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("double release: status = %d, want 409", w.Code)
	}
}

func TestHandlerAppealValidation(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")
	r := newTestRouter(svc, buyerAddr)

	if w, _ := doJSON(t, r, http.MethodPost, "/v1/transfers/"+tr.ID+"/pay", nil); w.Code != http.StatusOK {
		t.Fatal("pay failed")
	}

	w, _ := doJSON(t, r, http.MethodPost, "/v1/transfers/"+tr.ID+"/appeal", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty appeal: status = %d, want 400", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/v1/transfers/"+tr.ID+"/appeal", map[string]string{"reason": "no NFT received"})
	if w.Code != http.StatusOK {
		t.Fatalf("appeal: status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandlerAdminAppealResolution(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")
	r := newTestRouter(svc, buyerAddr)

	doJSON(t, r, http.MethodPost, "/v1/transfers/"+tr.ID+"/pay", nil)
	doJSON(t, r, http.MethodPost, "/v1/transfers/"+tr.ID+"/appeal", map[string]string{"reason": "dispute"})

	w, body := doJSON(t, r, http.MethodGet, "/v1/admin/transfers?status=appealed", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list appealed: status = %d", w.Code)
	}
	var count int
	if err := json.Unmarshal(body["count"], &count); err != nil || count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/v1/transfers/"+tr.ID+"/appeal/approve", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("approve: status = %d, body = %s", w.Code, w.Body.String())
	}

	w, _ = doJSON(t, r, http.MethodPost, "/v1/transfers/"+tr.ID+"/appeal/reject", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("reject after approve: status = %d, want 409", w.Code)
	}
}
