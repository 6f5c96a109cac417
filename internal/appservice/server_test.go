package appservice

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mxbridge/internal/domain"
	"mxbridge/internal/log"
	"mxbridge/internal/store"
)

const hsToken = "hs-token-for-tests"

type fakeStateStore struct {
	domain.StateStore
	members    map[domain.UserID]domain.Member
	encryption *domain.EncryptionEventContent
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{members: make(map[domain.UserID]domain.Member)}
}

func (f *fakeStateStore) SetMember(_ domain.RoomID, user domain.UserID, member domain.Member) error {
	f.members[user] = member
	return nil
}

func (f *fakeStateStore) SetEncryption(_ domain.RoomID, content domain.EncryptionEventContent) error {
	f.encryption = &content
	return nil
}

func newTestServer(t *testing.T, states domain.StateStore) (*Server, *httptest.Server) {
	t.Helper()
	s := New(hsToken, states, log.NewDiscard())
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func putTransaction(t *testing.T, base, txnID, token string, events []domain.Event) *http.Response {
	t.Helper()
	body, err := json.Marshal(map[string]any{"events": events})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut,
		base+"/_matrix/app/v1/transactions/"+txnID+"?access_token="+token,
		bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_RejectsBadAuth(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := putTransaction(t, ts.URL, "txn1", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = putTransaction(t, ts.URL, "txn1", "wrong", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_BearerAuthAccepted(t *testing.T) {
	_, ts := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodPut,
		ts.URL+"/_matrix/app/v1/transactions/txn-bearer",
		bytes.NewReader([]byte(`{"events":[]}`)))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+hsToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_DeliversEventsOnce(t *testing.T) {
	s, ts := newTestServer(t, nil)
	delivered := make(chan domain.Event, 4)
	s.EventHandler = func(evt domain.Event) { delivered <- evt }

	events := []domain.Event{{
		ID:     "$evt1",
		Type:   "m.room.message",
		RoomID: "!room:example.org",
		Sender: "@alice:example.org",
	}}

	resp := putTransaction(t, ts.URL, "txn1", hsToken, events)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case evt := <-delivered:
		require.Equal(t, "$evt1", evt.ID)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}

	// A replayed transaction is acknowledged without redelivery.
	resp = putTransaction(t, ts.URL, "txn1", hsToken, events)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	select {
	case <-delivered:
		t.Fatal("replayed transaction must not redeliver events")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServer_RetryAfterMalformedBody(t *testing.T) {
	s, ts := newTestServer(t, nil)
	delivered := make(chan domain.Event, 4)
	s.EventHandler = func(evt domain.Event) { delivered <- evt }

	// A truncated body is rejected without recording the transaction ID.
	req, err := http.NewRequest(http.MethodPut,
		ts.URL+"/_matrix/app/v1/transactions/txn-retry", bytes.NewReader([]byte(`{"events":[`)))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+hsToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The homeserver retries under the same ID; the retry must deliver.
	events := []domain.Event{{
		ID:     "$retried",
		Type:   "m.room.message",
		RoomID: "!room:example.org",
		Sender: "@alice:example.org",
	}}
	resp = putTransaction(t, ts.URL, "txn-retry", hsToken, events)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case evt := <-delivered:
		require.Equal(t, "$retried", evt.ID)
	case <-time.After(time.Second):
		t.Fatal("retried transaction was not delivered")
	}

	// Only the successful delivery counts against the replay window.
	resp = putTransaction(t, ts.URL, "txn-retry", hsToken, events)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	select {
	case <-delivered:
		t.Fatal("replayed transaction must not redeliver events")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServer_LegacyPathsServed(t *testing.T) {
	s, ts := newTestServer(t, nil)
	delivered := make(chan domain.Event, 1)
	s.EventHandler = func(evt domain.Event) { delivered <- evt }

	body := []byte(`{"events":[{"event_id":"$legacy","type":"m.room.message"}]}`)
	req, err := http.NewRequest(http.MethodPut,
		ts.URL+"/transactions/legacy-txn?access_token="+hsToken, bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case evt := <-delivered:
		require.Equal(t, "$legacy", evt.ID)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered on the legacy path")
	}
}

func TestServer_FoldsStateEvents(t *testing.T) {
	states := newFakeStateStore()
	_, ts := newTestServer(t, states)

	stateKey := "@alice:example.org"
	events := []domain.Event{
		{
			ID:       "$member",
			Type:     domain.EventMember,
			RoomID:   "!room:example.org",
			Sender:   "@alice:example.org",
			StateKey: &stateKey,
			Content:  json.RawMessage(`{"membership":"join","displayname":"Alice"}`),
		},
		{
			ID:       "$enc",
			Type:     domain.EventEncryption,
			RoomID:   "!room:example.org",
			Sender:   "@alice:example.org",
			StateKey: new(string),
			Content:  json.RawMessage(`{"algorithm":"m.olm.v1.curve25519-aes-sha2"}`),
		},
	}

	resp := putTransaction(t, ts.URL, "txn-state", hsToken, events)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	member := states.members["@alice:example.org"]
	require.Equal(t, domain.MembershipJoin, member.Membership)
	require.Equal(t, "Alice", member.Displayname)
	require.NotNil(t, states.encryption)
	require.Equal(t, domain.AlgorithmOlmV1, states.encryption.Algorithm)
}

func TestServer_UserAndAliasQueries(t *testing.T) {
	s, ts := newTestServer(t, nil)
	s.QueryUser = func(user domain.UserID) bool { return user == "@_bridge_bob:example.org" }
	s.QueryAlias = func(alias domain.RoomAlias) bool { return alias == "#_bridge_general:example.org" }

	get := func(path string) int {
		resp, err := http.Get(ts.URL + path + "?access_token=" + hsToken)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusOK, get("/_matrix/app/v1/users/@_bridge_bob:example.org"))
	require.Equal(t, http.StatusNotFound, get("/_matrix/app/v1/users/@stranger:example.org"))
	require.Equal(t, http.StatusOK, get("/_matrix/app/v1/rooms/"+"%23_bridge_general:example.org"))
	require.Equal(t, http.StatusNotFound, get("/_matrix/app/v1/rooms/"+"%23other:example.org"))
}

func TestServer_StateEventsLandInBolt(t *testing.T) {
	bolt, err := store.NewBolt(t.TempDir()+"/as.db", "pickle")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })

	_, ts := newTestServer(t, bolt)

	stateKey := ""
	resp := putTransaction(t, ts.URL, "txn-bolt", hsToken, []domain.Event{{
		ID:       "$pl",
		Type:     domain.EventPowerLevels,
		RoomID:   "!room:example.org",
		Sender:   "@admin:example.org",
		StateKey: &stateKey,
		Content:  json.RawMessage(`{"users":{"@admin:example.org":100},"users_default":10}`),
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	levels, ok, err := bolt.GetPowerLevels("!room:example.org")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 100, levels.GetUserLevel("@admin:example.org"))
	require.Equal(t, 10, levels.GetUserLevel("@user:example.org"))
}
