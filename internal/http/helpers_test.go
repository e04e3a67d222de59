package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"log/slog"

	"authgate/internal/auth"
	"authgate/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider stands in for the Google client in handler tests.
type fakeProvider struct {
	exchangeIdentity *auth.Identity
	exchangeErr      error
	lastState        string
	exchangeCalls    int
}

func (f *fakeProvider) AuthURL(state string) string {
	f.lastState = state
	return "https://accounts.google.com/o/oauth2/auth?scope=openid+profile+email&state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (*auth.Identity, error) {
	f.exchangeCalls++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.exchangeIdentity, nil
}

// failingStore simulates an unavailable session backend.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Create(context.Context) (*session.Session, error) { return nil, errStoreDown }
func (failingStore) Save(context.Context, *session.Session) error     { return errStoreDown }
func (failingStore) Destroy(context.Context, string) error            { return errStoreDown }
func (failingStore) Load(context.Context, string) (*session.Session, error) {
	return nil, errStoreDown
}

// withSession injects a session into the request context the way the session
// middleware would.
func withSession(r *http.Request, sess *session.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionContextKey, sess))
}

func mustCreateSession(t *testing.T, store session.Store) *session.Session {
	t.Helper()
	sess, err := store.Create(context.Background())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return sess
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
