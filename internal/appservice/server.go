package appservice

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	logging "gopkg.in/op/go-logging.v1"

	"mxbridge/internal/domain"
	"mxbridge/internal/log"
)

// seenTxnLimit bounds the replay window for transaction IDs. The
// homeserver only ever retries the most recent transaction, so a small
// window is plenty.
const seenTxnLimit = 128

// Server handles pushes from the homeserver. The three hooks may be nil:
// a nil EventHandler drops events, nil query hooks report nothing exists.
type Server struct {
	EventHandler func(domain.Event)
	QueryUser    func(domain.UserID) bool
	QueryAlias   func(domain.RoomAlias) bool

	hsToken string
	states  domain.StateStore
	log     *logging.Logger

	txnMu    sync.Mutex
	seenTxns map[string]struct{}
	txnOrder []string

	srv *http.Server
}

// New constructs a Server that authenticates pushes with hsToken and
// folds state events into states.
func New(hsToken string, states domain.StateStore, logBackend *log.Backend) *Server {
	return &Server{
		hsToken:  hsToken,
		states:   states,
		log:      logBackend.GetLogger("appservice"),
		seenTxns: make(map[string]struct{}),
	}
}

// Router returns the handler serving both API prefixes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	for _, prefix := range []string{"", "/_matrix/app/v1"} {
		mux.HandleFunc("PUT "+prefix+"/transactions/{txnID}", s.handleTransaction)
		mux.HandleFunc("GET "+prefix+"/users/{userID}", s.handleQueryUser)
		mux.HandleFunc("GET "+prefix+"/rooms/{alias}", s.handleQueryAlias)
	}
	return mux
}

// ListenAndServe blocks serving the appservice API on addr until ctx is
// cancelled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.Router()}
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()
	s.log.Noticef("Appservice listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.srv.Shutdown(context.Background())
	}
}

// checkAuth validates the hs_token. It writes the error response itself
// and reports whether the request may proceed.
func (s *Server) checkAuth(w http.ResponseWriter, r *http.Request) bool {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	switch token {
	case "":
		writeError(w, http.StatusUnauthorized, "M_MISSING_TOKEN", "Missing hs_token")
		return false
	case s.hsToken:
		return true
	default:
		writeError(w, http.StatusForbidden, "M_FORBIDDEN", "Incorrect hs_token")
		return false
	}
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	txnID := r.PathValue("txnID")
	if s.wasSeen(txnID) {
		s.log.Debugf("Ignoring replayed transaction %s", txnID)
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}

	var body struct {
		Events []domain.Event `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		// Not marked as seen: the homeserver retries failed
		// transactions under the same ID, and the retry must
		// still be delivered.
		writeError(w, http.StatusBadRequest, "M_NOT_JSON", "Malformed transaction body")
		return
	}
	if s.markSeen(txnID) {
		s.log.Debugf("Ignoring replayed transaction %s", txnID)
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	s.log.Debugf("Transaction %s carries %d events", txnID, len(body.Events))

	for _, evt := range body.Events {
		s.updateState(evt)
		if s.EventHandler != nil {
			go s.dispatch(evt)
		}
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// dispatch runs the event handler, keeping a panicking handler from
// taking the whole process down.
func (s *Server) dispatch(evt domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("Event handler panicked on %s: %v", evt.ID, r)
		}
	}()
	s.EventHandler(evt)
}

// wasSeen reports whether txnID has already been processed.
func (s *Server) wasSeen(txnID string) bool {
	s.txnMu.Lock()
	defer s.txnMu.Unlock()
	_, seen := s.seenTxns[txnID]
	return seen
}

// markSeen records txnID, reporting whether it was already known, and
// evicts the oldest recorded ID past the replay window. IDs are only
// recorded once the transaction body has decoded, so a rejected
// delivery does not suppress the homeserver's retry.
func (s *Server) markSeen(txnID string) bool {
	s.txnMu.Lock()
	defer s.txnMu.Unlock()
	if _, seen := s.seenTxns[txnID]; seen {
		return true
	}
	s.seenTxns[txnID] = struct{}{}
	s.txnOrder = append(s.txnOrder, txnID)
	if len(s.txnOrder) > seenTxnLimit {
		delete(s.seenTxns, s.txnOrder[0])
		s.txnOrder = s.txnOrder[1:]
	}
	return false
}

// updateState folds one state event into the state store.
func (s *Server) updateState(evt domain.Event) {
	if s.states == nil || !evt.IsState() {
		return
	}
	var err error
	switch evt.Type {
	case domain.EventMember:
		var member domain.Member
		if err = json.Unmarshal(evt.Content, &member); err == nil {
			err = s.states.SetMember(evt.RoomID, domain.UserID(*evt.StateKey), member)
		}
	case domain.EventEncryption:
		var content domain.EncryptionEventContent
		if err = json.Unmarshal(evt.Content, &content); err == nil {
			err = s.states.SetEncryption(evt.RoomID, content)
		}
	case domain.EventPowerLevels:
		var levels domain.PowerLevels
		if err = json.Unmarshal(evt.Content, &levels); err == nil {
			err = s.states.SetPowerLevels(evt.RoomID, levels)
		}
	default:
		return
	}
	if err != nil {
		s.log.Warningf("Failed to update state from %s in %s: %v", evt.Type, evt.RoomID, err)
	}
}

func (s *Server) handleQueryUser(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	user := domain.UserID(r.PathValue("userID"))
	if s.QueryUser != nil && s.QueryUser(user) {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeError(w, http.StatusNotFound, "M_NOT_FOUND", "User not managed by this appservice")
}

func (s *Server) handleQueryAlias(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	alias := domain.RoomAlias(r.PathValue("alias"))
	if s.QueryAlias != nil && s.QueryAlias(alias) {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeError(w, http.StatusNotFound, "M_NOT_FOUND", "Alias not managed by this appservice")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"errcode": code,
		"error":   message,
	})
}
