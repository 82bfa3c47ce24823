package listdir

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/tests/testutil"
)

func newDirectory(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var busy atomic.Int32
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/lists/dev@example.com", func(w http.ResponseWriter, r *http.Request) {
		if busy.Add(-1) >= 0 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		reply(w, List{ListID: "dev.example.com", FQDNListname: "dev@example.com", DisplayName: "Dev", Description: "Developers"})
	})
	mux.HandleFunc("/lists/dev@example.com/config", func(w http.ResponseWriter, r *http.Request) {
		reply(w, ListConfig{SubjectPrefix: "[dev] ", ArchivePolicy: "private", CreatedAt: "2012-11-02T15:07:54"})
	})
	mux.HandleFunc("/lists/hidden@example.com", func(w http.ResponseWriter, r *http.Request) {
		reply(w, List{ListID: "hidden.example.com", FQDNListname: "hidden@example.com"})
	})
	mux.HandleFunc("/lists/hidden@example.com/config", func(w http.ResponseWriter, r *http.Request) {
		reply(w, ListConfig{ArchivePolicy: "never"})
	})
	mux.HandleFunc("/lists", func(w http.ResponseWriter, r *http.Request) {
		reply(w, ListPage{Start: 0, TotalSize: 2, Entries: []List{
			{FQDNListname: "dev@example.com"},
			{FQDNListname: "hidden@example.com"},
		}})
	})
	mux.HandleFunc("/users/alice@example.com", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "restadmin" || pass != "restpass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		reply(w, User{UserID: "a1b2c3"})
	})
	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		reply(w, ErrorResponse{Title: "404 Not Found"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &busy
}

func TestClientGetList(t *testing.T) {
	srv, busy := newDirectory(t)
	busy.Store(1)
	c := NewClient(srv.URL, "restadmin", "restpass", time.Second)

	meta, err := c.GetList(context.Background(), "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, "dev.example.com", meta.ListID)
	assert.Equal(t, "[dev] ", meta.SubjectPrefix)
	assert.Equal(t, model.ArchivePolicyPrivate, meta.ArchivePolicy)
	assert.Equal(t, time.Date(2012, 11, 2, 15, 7, 54, 0, time.UTC), meta.CreatedAt)
}

func TestClientErrors(t *testing.T) {
	srv, _ := newDirectory(t)
	ctx := context.Background()

	_, err := NewClient(srv.URL, "restadmin", "wrong", time.Second).GetUserID(ctx, "alice@example.com")
	assert.True(t, IsAuthError(err))

	_, err = NewClient(srv.URL, "restadmin", "restpass", time.Second).GetUserID(ctx, "bob@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncer(t *testing.T) {
	srv, _ := newDirectory(t)
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	syncer := NewSyncer(NewClient(srv.URL, "restadmin", "restpass", time.Second), s)

	imported, err := syncer.ImportNewLists(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev@example.com"}, imported)

	ml, err := s.GetMailingList(ctx, "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Dev", ml.DisplayName)
	assert.True(t, ml.IsPrivate())

	alice, err := s.GetOrCreateSender(ctx, "alice@example.com")
	require.NoError(t, err)
	bob, err := s.GetOrCreateSender(ctx, "bob@example.com")
	require.NoError(t, err)

	linked, err := syncer.SyncAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, linked)

	alice, err = s.GetSender(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, alice.MailmanID)
	assert.Equal(t, "a1b2c3", *alice.MailmanID)

	// Unknown senders and unreachable lists are not errors.
	require.NoError(t, syncer.SyncSender(ctx, bob.ID))
	_, _, err = s.GetOrCreateMailingList(ctx, "gone@example.com")
	require.NoError(t, err)
	require.NoError(t, syncer.SyncList(ctx, "gone@example.com"))
}
