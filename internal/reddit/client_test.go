package reddit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReddit struct {
	mux    *http.ServeMux
	grants int32
	deny   int32 // pending 401s for API calls
}

func newFakeReddit() *fakeReddit {
	f := &fakeReddit{mux: http.NewServeMux()}
	f.mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		// resty withholds Basic Auth over plain HTTP, so the fake checks the
		// password-grant form fields instead.
		_ = r.ParseForm()
		if r.FormValue("grant_type") != "password" || r.FormValue("username") == "" || r.FormValue("password") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := atomic.AddInt32(&f.grants, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok%d","expires_in":3600,"token_type":"bearer"}`, n)
	})
	return f
}

func (f *fakeReddit) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&f.deny) > 0 {
			atomic.AddInt32(&f.deny, -1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		next(w, r)
	}
}

func newTestClient(t *testing.T, f *fakeReddit) *Client {
	t.Helper()
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	return NewClient(Credentials{
		ClientID: "id", ClientSecret: "secret",
		Username: "tradebot", Password: "hunter2",
		UserAgent: "test",
	}, "pkmntcgtrades", WithBaseURLs(srv.URL, srv.URL))
}

func TestListRecentComments(t *testing.T) {
	f := newFakeReddit()
	f.mux.HandleFunc("/r/pkmntcgtrades/comments", f.authed(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"after":"","children":[
			{"kind":"t1","data":{"id":"c2","body":"confirmed","author":"buyer","parent_id":"t1_c1","link_id":"t3_sub1","created_utc":1717200000}},
			{"kind":"t1","data":{"id":"c1","body":"Traded with u/buyer","author":"seller","parent_id":"t3_sub1","link_id":"t3_sub1","saved":true,"locked":true}}
		]}}`)
	}))
	c := newTestClient(t, f)

	page, err := c.ListRecentComments(context.Background(), 100)
	require.NoError(t, err)
	assert.True(t, page.Exhausted, "empty after means the listing ended")
	require.Len(t, page.Comments, 2)

	reply := page.Comments[0]
	assert.Equal(t, "c2", reply.ID)
	assert.False(t, reply.IsRoot)
	assert.Equal(t, "c1", reply.ParentID)
	assert.Equal(t, "sub1", reply.SubmissionID)

	root := page.Comments[1]
	assert.True(t, root.IsRoot)
	assert.Equal(t, "sub1", root.ParentID)
	assert.True(t, root.Saved)
	assert.True(t, root.Locked)
}

func TestGetCommentNotFound(t *testing.T) {
	f := newFakeReddit()
	f.mux.HandleFunc("/api/info", f.authed(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"after":"","children":[]}}`)
	}))
	c := newTestClient(t, f)

	_, err := c.GetComment(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTokenReusedAcrossCalls(t *testing.T) {
	f := newFakeReddit()
	f.mux.HandleFunc("/api/info", f.authed(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"after":"","children":[{"kind":"t1","data":{"id":"c1","parent_id":"t3_sub1","link_id":"t3_sub1"}}]}}`)
	}))
	c := newTestClient(t, f)
	ctx := context.Background()

	_, err := c.GetComment(ctx, "c1")
	require.NoError(t, err)
	_, err = c.GetComment(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.grants))
}

func TestTokenDroppedAfterUnauthorized(t *testing.T) {
	f := newFakeReddit()
	f.mux.HandleFunc("/api/info", f.authed(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"after":"","children":[{"kind":"t1","data":{"id":"c1","parent_id":"t3_sub1","link_id":"t3_sub1"}}]}}`)
	}))
	c := newTestClient(t, f)
	ctx := context.Background()

	_, err := c.GetComment(ctx, "c1")
	require.NoError(t, err)

	// The API starts rejecting the cached token.
	atomic.StoreInt32(&f.deny, 1)
	_, err = c.GetComment(ctx, "c1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	// The next call re-grants and succeeds.
	_, err = c.GetComment(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.grants))
}

func TestReplySavesItself(t *testing.T) {
	f := newFakeReddit()
	var saved []string
	f.mux.HandleFunc("/api/comment", f.authed(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"json":{"errors":[],"data":{"things":[{"data":{"id":"newreply"}}]}}}`)
	}))
	f.mux.HandleFunc("/api/save", f.authed(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		saved = append(saved, r.FormValue("id"))
		fmt.Fprint(w, `{}`)
	}))
	c := newTestClient(t, f)

	id, err := c.Reply(context.Background(), "c1", "Trade confirmed!")
	require.NoError(t, err)
	assert.Equal(t, "newreply", id)
	assert.Equal(t, []string{"t1_newreply"}, saved)
}
