package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"socialgraph.relay/sgr/internal/docs"
	"socialgraph.relay/sgr/internal/events"
	"socialgraph.relay/sgr/internal/ledger"
	"socialgraph.relay/sgr/internal/logger"
	"socialgraph.relay/sgr/internal/program"
	"socialgraph.relay/sgr/internal/relay"
	"socialgraph.relay/sgr/internal/social"
	"socialgraph.relay/sgr/internal/store"
)

type fixture struct {
	svc    *Service
	router *mux.Router
	admin  *mux.Router
	store  *store.Store
	ledger *ledger.Memory
	ring   *logger.Ring
}

// setupTest creates a temporary store, an in-process ledger and the full
// handler stack behind a router.
func setupTest(t *testing.T, finality time.Duration) (*fixture, func()) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "socialgraph.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	log, ring, err := logger.New(logger.Options{Level: "info", Buffer: 100, Output: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	mem := ledger.NewMemory(program.DefaultProgramID, zerolog.Nop())
	r := relay.New(mem, relay.Config{
		Commitment:      ledger.StateFinalized,
		FinalityTimeout: finality,
		PollInterval:    2 * time.Millisecond,
	}, relay.WithJournal(st), relay.WithLogger(log))

	hub := events.NewHub([]string{"http://localhost:3000"}, nil, log)
	svc := NewService(Deps{
		Social:     social.NewService(st, r, hub, social.Options{RequireCredentialForPosts: true}, log),
		Store:      st,
		Hub:        hub,
		Ledger:     mem,
		Docs:       docs.NewService(),
		Activity:   ring,
		Commits:    r,
		MaxBackups: 5,
		Logger:     log,
	})

	router := mux.NewRouter()
	svc.Routes(router)
	admin := mux.NewRouter()
	svc.AdminRoutes(admin)

	cleanup := func() {
		r.Close()
		st.Close()
	}
	return &fixture{svc: svc, router: router, admin: admin, store: st, ledger: mem, ring: ring}, cleanup
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return serve(t, f.router, method, path, body)
}

// doAdmin sends the request to the operator routes.
func (f *fixture) doAdmin(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return serve(t, f.admin, method, path, body)
}

func serve(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

func (f *fixture) blockhash(t *testing.T) solana.Hash {
	t.Helper()
	bh, err := f.ledger.LatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("Failed to get blockhash: %v", err)
	}
	return bh
}

func newWallet(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}
	return key
}

// registerBody builds the JSON body of POST /api/transactions/submit.
func (f *fixture) registerBody(t *testing.T, wallet solana.PrivateKey, name string) map[string]string {
	t.Helper()
	args := program.CreateProfileArgs{Name: name, Bio: "bio of " + name, Avatar: "https://example.com/" + name + ".png"}
	signed, err := program.SignedCreateProfile(program.DefaultProgramID, f.blockhash(t), wallet, args)
	if err != nil {
		t.Fatalf("Failed to sign create_profile: %v", err)
	}
	return map[string]string{
		"transaction":      base64.StdEncoding.EncodeToString(signed.Payload),
		"name":             args.Name,
		"bio":              args.Bio,
		"avatar":           args.Avatar,
		"profilePublicKey": signed.Account.String(),
		"phantomAddress":   wallet.PublicKey().String(),
	}
}

func (f *fixture) register(t *testing.T, name string) solana.PrivateKey {
	t.Helper()
	wallet := newWallet(t)
	w := f.do(t, http.MethodPost, "/api/transactions/submit", f.registerBody(t, wallet, name))
	if w.Code != http.StatusCreated {
		t.Fatalf("Register %s: expected 201, got %d: %s", name, w.Code, w.Body.String())
	}
	return wallet
}
