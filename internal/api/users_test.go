package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"socialgraph.relay/sgr/internal/types"
)

func TestHandleSubmitTransaction(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	wallet := newWallet(t)
	body := f.registerBody(t, wallet, "Ana")

	w := f.do(t, http.MethodPost, "/api/transactions/submit", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var profile types.Profile
	decodeBody(t, w, &profile)
	if profile.DisplayName != "Ana" || profile.Address != wallet.PublicKey().String() {
		t.Errorf("Unexpected profile: %+v", profile)
	}

	// Same wallet again, new transaction.
	w = f.do(t, http.MethodPost, "/api/transactions/submit", f.registerBody(t, wallet, "Other"))
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409 for duplicate address, got %d: %s", w.Code, w.Body.String())
	}
	var errBody errorBody
	decodeBody(t, w, &errBody)
	if errBody.Code != "duplicate_address" {
		t.Errorf("Expected code duplicate_address, got %q", errBody.Code)
	}

	w = f.do(t, http.MethodGet, "/api/users/profile/"+wallet.PublicKey().String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	decodeBody(t, w, &profile)
	if profile.DisplayName != "Ana" {
		t.Errorf("Expected the first name to stick, got %q", profile.DisplayName)
	}
}

func TestHandleSubmitTransaction_Invalid(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	wallet := newWallet(t)
	cases := map[string]func(b map[string]string){
		"bad base64":      func(b map[string]string) { b["transaction"] = "%%%" },
		"missing name":    func(b map[string]string) { delete(b, "name") },
		"wrong signer":    func(b map[string]string) { b["phantomAddress"] = newWallet(t).PublicKey().String() },
		"bad account key": func(b map[string]string) { b["profilePublicKey"] = "nope" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			body := f.registerBody(t, wallet, "Ana")
			mutate(body)
			w := f.do(t, http.MethodPost, "/api/transactions/submit", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	req := f.do(t, http.MethodPost, "/api/transactions/submit", nil)
	if req.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty body, got %d", req.Code)
	}
}

func TestHandleSubmitTransaction_Rejected(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	f.ledger.RejectNext("Attempt to debit an account but found no record of a prior credit.")
	w := f.do(t, http.MethodPost, "/api/transactions/submit", f.registerBody(t, newWallet(t), "Ana"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d: %s", w.Code, w.Body.String())
	}
	var errBody errorBody
	decodeBody(t, w, &errBody)
	if !strings.HasPrefix(errBody.Error, "Transaction failed: Attempt to debit") {
		t.Errorf("Expected the ledger reason verbatim, got %q", errBody.Error)
	}
	if errBody.Code != "relay_rejected" {
		t.Errorf("Expected code relay_rejected, got %q", errBody.Code)
	}
}

func TestHandleSubmitTransaction_UnknownThenStatus(t *testing.T) {
	f, cleanup := setupTest(t, 80*time.Millisecond)
	defer cleanup()

	wallet := newWallet(t)
	address := wallet.PublicKey().String()

	f.ledger.Hold(true)
	w := f.do(t, http.MethodPost, "/api/transactions/submit", f.registerBody(t, wallet, "Ana"))
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("Expected 504, got %d: %s", w.Code, w.Body.String())
	}
	var errBody errorBody
	decodeBody(t, w, &errBody)
	if errBody.Signature == "" {
		t.Fatal("Expected the signature in the 504 body")
	}

	w = f.do(t, http.MethodGet, "/api/users/profile/"+address, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected no profile yet, got %d", w.Code)
	}

	f.ledger.Hold(false)
	deadline := time.Now().Add(2 * time.Second)
	var status struct {
		Status string `json:"status"`
		Intent string `json:"intent"`
	}
	for time.Now().Before(deadline) {
		w = f.do(t, http.MethodGet, "/api/transactions/"+errBody.Signature, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}
		decodeBody(t, w, &status)
		if status.Status == string(types.RelayConfirmed) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if status.Status != string(types.RelayConfirmed) {
		t.Fatalf("Expected confirmed after reconciliation, got %q", status.Status)
	}
	if status.Intent != string(types.IntentRegisterProfile) {
		t.Errorf("Expected intent register_profile, got %q", status.Intent)
	}

	w = f.do(t, http.MethodGet, "/api/users/registration/"+address, nil)
	var reg types.RegistrationStatus
	decodeBody(t, w, &reg)
	if reg.State != types.RegistrationRegistered {
		t.Errorf("Expected registered, got %q", reg.State)
	}
}

func TestHandleTransactionStatus_NotFound(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	var sig solana.Signature
	sig[0] = 1
	w := f.do(t, http.MethodGet, "/api/transactions/"+sig.String(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/transactions/not-a-signature", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestHandleProfile_NotFound(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	w := f.do(t, http.MethodGet, "/api/users/profile/"+newWallet(t).PublicKey().String(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
	w = f.do(t, http.MethodGet, "/api/users/available/"+newWallet(t).PublicKey().String(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
