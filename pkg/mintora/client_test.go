package mintora

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegister(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/v1/accounts" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["address"] != "0xabc" {
			t.Errorf("address = %q", body["address"])
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"account": map[string]string{"address": "0xabc", "role": "user"},
			"apiKey":  "sk_test123",
		})
	}))
	defer ts.Close()

	c := New(ts.URL)
	result, err := c.Register(context.Background(), "0xabc", "Alice")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if result.APIKey != "sk_test123" {
		t.Errorf("APIKey = %q", result.APIKey)
	}
	if result.Account.Address != "0xabc" {
		t.Errorf("Address = %q", result.Account.Address)
	}
}

func TestAuthorizationHeader(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{"transfer": map[string]string{"id": "p2p_1"}})
	}))
	defer ts.Close()

	c := New(ts.URL, WithAPIKey("sk_secret"))
	if _, err := c.Pay(context.Background(), "p2p_1"); err != nil {
		t.Fatalf("Pay failed: %v", err)
	}
	if gotAuth != "Bearer sk_secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestTransferActions(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody = nil
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"transfer": map[string]string{"id": "p2p_1", "status": "appealed"},
		})
	}))
	defer ts.Close()

	c := New(ts.URL, WithAPIKey("sk_test"))
	transfer, err := c.Appeal(context.Background(), "p2p_1", "item not delivered")
	if err != nil {
		t.Fatalf("Appeal failed: %v", err)
	}
	if gotPath != "/v1/transfers/p2p_1/appeal" {
		t.Errorf("Path = %q", gotPath)
	}
	if gotBody["reason"] != "item not delivered" {
		t.Errorf("Body = %v", gotBody)
	}
	if transfer.Status != "appealed" {
		t.Errorf("Status = %q", transfer.Status)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "invalid_state",
			"message": "transfer is not pending",
		})
	}))
	defer ts.Close()

	c := New(ts.URL, WithAPIKey("sk_test"))
	_, err := c.Pay(context.Background(), "p2p_1")
	if err == nil {
		t.Fatal("Expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Code != "invalid_state" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestListNFTsCategoryFilter(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]interface{}{
			"nfts":  []map[string]string{{"id": "nft_1"}},
			"count": 1,
		})
	}))
	defer ts.Close()

	c := New(ts.URL)
	nfts, err := c.ListNFTs(context.Background(), "cat_art")
	if err != nil {
		t.Fatalf("ListNFTs failed: %v", err)
	}
	if gotQuery != "category=cat_art" {
		t.Errorf("Query = %q", gotQuery)
	}
	if len(nfts) != 1 || nfts[0].ID != "nft_1" {
		t.Errorf("NFTs = %v", nfts)
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"type":"transfer.released"}`)

	mac := hmac.New(sha256.New, []byte("whsec_abc"))
	mac.Write(payload)
	valid := hex.EncodeToString(mac.Sum(nil))

	if !VerifyWebhookSignature(payload, "whsec_abc", valid) {
		t.Error("Valid signature rejected")
	}
	if VerifyWebhookSignature(payload, "whsec_other", valid) {
		t.Error("Signature accepted with wrong secret")
	}
}
