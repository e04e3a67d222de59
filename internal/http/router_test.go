package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"authgate/internal/auth"
	"authgate/internal/config"
	"authgate/internal/session"
)

func testConfig() config.Config {
	return config.Config{
		Environment:    "development",
		HTTPPort:       5678,
		SessionTTL:     time.Hour,
		StateTTL:       5 * time.Minute,
		AllowedOrigins: []string{"http://localhost:5678"},
	}
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := NewRouter(testConfig(), session.NewMemoryStore(time.Hour), &fakeProvider{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestRouterProtectedRedirectsUnauthenticated(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	router := NewRouter(testConfig(), store, &fakeProvider{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", rec.Code)
	}
	if rec.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %q", rec.Header().Get("Location"))
	}
}

func TestRouterProtectedFailsWhenStoreDown(t *testing.T) {
	router := NewRouter(testConfig(), failingStore{}, &fakeProvider{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "some-id"})
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 when store is down, got %d", rec.Code)
	}
	if rec.Header().Get("Location") != "" {
		t.Fatal("store failure must not silently redirect to login")
	}
}

func TestRouterHomeShowsLoginLink(t *testing.T) {
	router := NewRouter(testConfig(), session.NewMemoryStore(time.Hour), &fakeProvider{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/auth/login") {
		t.Fatal("expected home page to link to login")
	}
}

// TestRouterFullLoginFlow walks the whole state machine through the router:
// login redirect, provider callback, then access to the protected page.
func TestRouterFullLoginFlow(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	provider := &fakeProvider{
		exchangeIdentity: &auth.Identity{
			Provider:       "google",
			ProviderUserID: "sub-1",
			DisplayName:    "Test User",
			Emails:         []string{"user@example.com"},
		},
	}
	router := NewRouter(testConfig(), store, provider, discardLogger())

	// Step 1: initiate login.
	loginRec := httptest.NewRecorder()
	router.ServeHTTP(loginRec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	if loginRec.Code != http.StatusFound {
		t.Fatalf("expected status 302 from login, got %d", loginRec.Code)
	}

	cookie := findCookie(t, loginRec, sessionCookieName)
	if cookie == nil {
		t.Fatal("expected session cookie from login")
	}

	location, err := url.Parse(loginRec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("login redirect unparseable: %v", err)
	}
	state := location.Query().Get("state")
	if state == "" {
		t.Fatal("expected state in provider redirect")
	}

	// Step 2: provider calls back with the code and state.
	callbackReq := httptest.NewRequest(http.MethodGet, "/auth/callback?state="+url.QueryEscape(state)+"&code=auth-code", nil)
	callbackReq.AddCookie(&http.Cookie{Name: sessionCookieName, Value: cookie.Value})
	callbackRec := httptest.NewRecorder()
	router.ServeHTTP(callbackRec, callbackReq)

	if callbackRec.Code != http.StatusFound {
		t.Fatalf("expected status 302 from callback, got %d", callbackRec.Code)
	}
	if callbackRec.Header().Get("Location") != "/protected" {
		t.Fatalf("expected redirect to /protected, got %q", callbackRec.Header().Get("Location"))
	}

	// Step 3: the session now admits the protected page.
	protectedReq := httptest.NewRequest(http.MethodGet, "/protected", nil)
	protectedReq.AddCookie(&http.Cookie{Name: sessionCookieName, Value: cookie.Value})
	protectedRec := httptest.NewRecorder()
	router.ServeHTTP(protectedRec, protectedReq)

	if protectedRec.Code != http.StatusOK {
		t.Fatalf("expected status 200 from protected page, got %d", protectedRec.Code)
	}
	if !strings.Contains(protectedRec.Body.String(), "Test User") {
		t.Fatal("expected protected page to render identity-derived content")
	}

	// Step 4: replaying the callback fails on the consumed state.
	replayReq := httptest.NewRequest(http.MethodGet, "/auth/callback?state="+url.QueryEscape(state)+"&code=auth-code", nil)
	replayReq.AddCookie(&http.Cookie{Name: sessionCookieName, Value: cookie.Value})
	replayRec := httptest.NewRecorder()
	router.ServeHTTP(replayRec, replayReq)

	if replayRec.Header().Get("Location") != failurePath {
		t.Fatalf("expected replayed callback to fail, got %q", replayRec.Header().Get("Location"))
	}
}

func TestRouterCallbackWithForgedStateStaysAnonymous(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	provider := &fakeProvider{exchangeIdentity: &auth.Identity{ProviderUserID: "sub-1"}}
	router := NewRouter(testConfig(), store, provider, discardLogger())

	loginRec := httptest.NewRecorder()
	router.ServeHTTP(loginRec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	cookie := findCookie(t, loginRec, sessionCookieName)
	if cookie == nil {
		t.Fatal("expected session cookie from login")
	}

	callbackReq := httptest.NewRequest(http.MethodGet, "/auth/callback?state=forged&code=auth-code", nil)
	callbackReq.AddCookie(&http.Cookie{Name: sessionCookieName, Value: cookie.Value})
	callbackRec := httptest.NewRecorder()
	router.ServeHTTP(callbackRec, callbackReq)

	if callbackRec.Header().Get("Location") != failurePath {
		t.Fatalf("expected failure redirect, got %q", callbackRec.Header().Get("Location"))
	}

	protectedReq := httptest.NewRequest(http.MethodGet, "/protected", nil)
	protectedReq.AddCookie(&http.Cookie{Name: sessionCookieName, Value: cookie.Value})
	protectedRec := httptest.NewRecorder()
	router.ServeHTTP(protectedRec, protectedReq)

	if protectedRec.Code != http.StatusFound {
		t.Fatalf("expected anonymous session to stay locked out, got %d", protectedRec.Code)
	}
}
