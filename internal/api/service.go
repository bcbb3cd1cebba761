package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"socialgraph.relay/sgr/internal/docs"
	"socialgraph.relay/sgr/internal/events"
	"socialgraph.relay/sgr/internal/logger"
	"socialgraph.relay/sgr/internal/social"
	"socialgraph.relay/sgr/internal/store"
)

// LedgerProbe is the slice of the ledger client the health check uses.
type LedgerProbe interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Social     *social.Service
	Store      *store.Store
	Hub        *events.Hub
	Ledger     LedgerProbe
	Docs       *docs.Service
	Activity   *logger.Ring
	Commits    CommitGate
	MaxBackups int
	Logger     zerolog.Logger
}

// Service handles API requests
type Service struct {
	social     *social.Service
	store      *store.Store
	hub        *events.Hub
	ledger     LedgerProbe
	docs       *docs.Service
	activity   *logger.Ring
	commits    CommitGate
	maxBackups int
	logger     zerolog.Logger
	started    time.Time
}

// NewService creates a new API service
func NewService(d Deps) *Service {
	if d.MaxBackups <= 0 {
		d.MaxBackups = 20
	}
	return &Service{
		social:     d.Social,
		store:      d.Store,
		hub:        d.Hub,
		ledger:     d.Ledger,
		docs:       d.Docs,
		activity:   d.Activity,
		commits:    d.Commits,
		maxBackups: d.MaxBackups,
		logger:     d.Logger.With().Str("component", "api").Logger(),
		started:    time.Now(),
	}
}

// writeJSON writes a JSON response
func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug().Err(err).Msg("write response")
	}
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Signature string `json:"signature,omitempty"`
}

// writeError writes a JSON error response
func (s *Service) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorBody{Error: message, Code: code})
}

// writeServiceError maps a handshake failure to its HTTP status.
func (s *Service) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var e *social.Error
	if !errors.As(err, &e) {
		e = &social.Error{Kind: social.KindInternal, Code: social.ErrInternal.Code, Msg: social.ErrInternal.Msg, Err: err}
	}

	status := statusFor(e.Kind)
	body := errorBody{Error: e.Msg, Code: e.Code, Signature: e.Signature}
	if status == http.StatusInternalServerError && e.Kind == social.KindInternal {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		s.logger.Info().Str("path", r.URL.Path).Str("code", e.Code).Msg(e.Msg)
	}
	s.writeJSON(w, status, body)
}

func statusFor(kind social.Kind) int {
	switch kind {
	case social.KindValidation:
		return http.StatusBadRequest
	case social.KindForbidden:
		return http.StatusForbidden
	case social.KindNotFound:
		return http.StatusNotFound
	case social.KindConflict:
		return http.StatusConflict
	case social.KindRelayUnknown:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body of at most maxBodyBytes into v.
func (s *Service) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, social.ErrValidation.Code, "Invalid request body")
		return false
	}
	return true
}

const maxBodyBytes = 1 << 20

func (s *Service) message(w http.ResponseWriter, status int, msg string, extra map[string]interface{}) {
	body := map[string]interface{}{"message": msg}
	for k, v := range extra {
		body[k] = v
	}
	s.writeJSON(w, status, body)
}
