package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

// backend is a fake token-protected API. Data calls succeed only with the
// currently valid access token.
type backend struct {
	server        *httptest.Server
	valid         atomic.Value // string
	refreshStatus int
	rotate        bool
	refreshDelay  time.Duration
	handOut       string
	refreshes     int32
	dataCalls     int32
	lastAuth      atomic.Value // string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{refreshStatus: http.StatusOK}
	b.valid.Store("fresh")
	b.lastAuth.Store("")

	mux := http.NewServeMux()
	mux.HandleFunc("/Service/api/token/auth", func(w http.ResponseWriter, r *http.Request) {
		var req models.TokenRequest
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		switch req.GrantType {
		case "refresh_token":
			atomic.AddInt32(&b.refreshes, 1)
			if b.refreshDelay > 0 {
				time.Sleep(b.refreshDelay)
			}
			if b.refreshStatus != http.StatusOK {
				w.WriteHeader(b.refreshStatus)
				w.Write([]byte(`{"error_description":"refresh token expired"}`))
				return
			}
			token := b.valid.Load().(string)
			if b.handOut != "" {
				token = b.handOut
			}
			resp := map[string]string{"access_token": token}
			if b.rotate {
				resp["refresh_token"] = "rotated"
			}
			json.NewEncoder(w).Encode(resp)
		case "password":
			if req.Username != "admin" || req.Password != "secret" || req.ClientID != "EPS" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error_description":"The user name or password is incorrect."}`))
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "fresh",
				"refresh_token": "r1",
				"token_type":    "Bearer",
				"fullName":      "Admin User",
				"username":      "admin",
				"userId":        3,
				"comId":         1,
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/Service/api/data", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.dataCalls, 1)
		auth := r.Header.Get("Authorization")
		b.lastAuth.Store(auth)
		if auth != "Bearer "+b.valid.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"unauthorized"}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/Service/api/device", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("itemsPerPage") != "999" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+b.valid.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data":{"currentPage":1,"pageSize":999,"totalRows":2,"data":[
			{"id":1,"name":"PTZ Gate","devicePath":"rtsp://u:p@10.0.0.1/stream","deviceFunctionId":2,"checkPointId":11},
			{"id":2,"name":"Fixed Lobby","devicePath":"rtsp://u:p@10.0.0.2/stream","deviceFunctionId":1,"checkPointId":12}]}}`))
	})
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *backend) client(session models.AuthSession) (*Client, *MemorySessionStore) {
	store := &MemorySessionStore{}
	store.Save(session)
	c := New(Config{
		BaseURL:         b.server.URL,
		AdditionalRoute: "/Service/api",
		LoginRoute:      "/token/auth",
		RefreshRoute:    "/token/auth",
		DeviceRoute:     "/device?page=1&itemsPerPage=999",
		ClientID:        "EPS",
		Timeout:         2 * time.Second,
	}, store)
	return c, store
}

func TestFullURL(t *testing.T) {
	c := New(Config{BaseURL: "http://api.local/", AdditionalRoute: "/Service/api"}, nil)
	if got := c.FullURL("device"); got != "http://api.local/Service/api/device" {
		t.Errorf("FullURL without slash = %s", got)
	}
	if got := c.FullURL("/device"); got != "http://api.local/Service/api/device" {
		t.Errorf("FullURL with slash = %s", got)
	}
}

func TestDoInjectsAuthorization(t *testing.T) {
	b := newBackend(t)
	c, _ := b.client(models.AuthSession{AccessToken: "fresh", TokenType: "Bearer"})

	resp, err := c.Do(context.Background(), Request{Method: resty.MethodGet, Endpoint: "/data"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode())
	}
	if b.lastAuth.Load().(string) != "Bearer fresh" {
		t.Errorf("unexpected header %q", b.lastAuth.Load())
	}
}

func TestDoRefreshesOnceAndRetries(t *testing.T) {
	b := newBackend(t)
	c, store := b.client(models.AuthSession{AccessToken: "expired", RefreshToken: "r1", TokenType: "Bearer"})

	resp, err := c.Do(context.Background(), Request{Method: resty.MethodGet, Endpoint: "/data"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("expected the retry to succeed, got %d", resp.StatusCode())
	}
	if n := atomic.LoadInt32(&b.refreshes); n != 1 {
		t.Errorf("expected one refresh, got %d", n)
	}
	if n := atomic.LoadInt32(&b.dataCalls); n != 2 {
		t.Errorf("expected two data calls, got %d", n)
	}
	session := c.Session()
	if session.AccessToken != "fresh" {
		t.Errorf("access token not replaced: %+v", session)
	}
	if session.RefreshToken != "r1" {
		t.Errorf("refresh token must be kept when the server does not rotate it: %+v", session)
	}
	if persisted, _ := store.Load(); persisted != session {
		t.Errorf("session not persisted: %+v", persisted)
	}
}

func TestDoStoresRotatedRefreshToken(t *testing.T) {
	b := newBackend(t)
	b.rotate = true
	c, _ := b.client(models.AuthSession{AccessToken: "expired", RefreshToken: "r1"})

	if _, err := c.Do(context.Background(), Request{Endpoint: "/data"}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got := c.Session().RefreshToken; got != "rotated" {
		t.Errorf("expected rotated refresh token, got %q", got)
	}
}

func TestDoReturnsSecond401AsIs(t *testing.T) {
	b := newBackend(t)
	// The refresh succeeds but hands out a token the data route still refuses.
	b.handOut = "still-bad"
	c, _ := b.client(models.AuthSession{AccessToken: "expired", RefreshToken: "r1"})

	resp, err := c.Do(context.Background(), Request{Endpoint: "/data"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode() != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode())
	}
	if n := atomic.LoadInt32(&b.refreshes); n != 1 {
		t.Errorf("expected exactly one refresh, got %d", n)
	}
	if n := atomic.LoadInt32(&b.dataCalls); n != 2 {
		t.Errorf("expected exactly one retry, got %d data calls", n)
	}
}

func TestDoRefreshFailureReturnsOriginal401(t *testing.T) {
	b := newBackend(t)
	b.refreshStatus = http.StatusBadRequest
	original := models.AuthSession{AccessToken: "expired", RefreshToken: "r1", TokenType: "Bearer"}
	c, _ := b.client(original)

	resp, err := c.Do(context.Background(), Request{Endpoint: "/data"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode() != http.StatusUnauthorized {
		t.Fatalf("expected the original 401, got %d", resp.StatusCode())
	}
	if n := atomic.LoadInt32(&b.dataCalls); n != 1 {
		t.Errorf("no retry expected after a failed refresh, got %d data calls", n)
	}
	if c.Session() != original {
		t.Errorf("session must be untouched after a failed refresh: %+v", c.Session())
	}
}

func TestDoWithoutSessionSendsNoHeader(t *testing.T) {
	b := newBackend(t)
	c, _ := b.client(models.AuthSession{})

	resp, err := c.Do(context.Background(), Request{Endpoint: "/data"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode() != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode())
	}
	if h := b.lastAuth.Load().(string); h != "" {
		t.Errorf("expected no Authorization header, got %q", h)
	}
	if n := atomic.LoadInt32(&b.refreshes); n != 0 {
		t.Errorf("no refresh expected without a refresh token, got %d", n)
	}
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	b := newBackend(t)
	b.refreshDelay = 30 * time.Millisecond
	c, _ := b.client(models.AuthSession{AccessToken: "expired", RefreshToken: "r1"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := c.Do(context.Background(), Request{Endpoint: "/data"})
			if err != nil {
				t.Errorf("Do: %v", err)
				return
			}
			if resp.StatusCode() != http.StatusOK {
				t.Errorf("expected 200, got %d", resp.StatusCode())
			}
		}()
	}
	wg.Wait()
	if n := atomic.LoadInt32(&b.refreshes); n != 1 {
		t.Errorf("expected a single refresh for concurrent callers, got %d", n)
	}
}

func TestLogin(t *testing.T) {
	b := newBackend(t)
	c, store := b.client(models.AuthSession{})

	session, user, err := c.Login(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.AccessToken != "fresh" || session.RefreshToken != "r1" || session.TokenType != "Bearer" {
		t.Errorf("unexpected session %+v", session)
	}
	if user.FullName != "Admin User" || user.UserID != 3 {
		t.Errorf("unexpected user %+v", user)
	}
	if persisted, _ := store.Load(); persisted != session {
		t.Errorf("login session not persisted: %+v", persisted)
	}
}

func TestLoginFailureMessage(t *testing.T) {
	b := newBackend(t)
	c, _ := b.client(models.AuthSession{})

	_, _, err := c.Login(context.Background(), "admin", "wrong")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected an AuthError, got %v", err)
	}
	if authErr.Message != "The user name or password is incorrect." {
		t.Errorf("unexpected message %q", authErr.Message)
	}
	if c.Session().AccessToken != "" {
		t.Error("a failed login must not set a session")
	}
}

func TestErrorMessageFallbacks(t *testing.T) {
	if got := errorMessage([]byte(`{"message":"locked"}`), "Login failed"); got != "locked" {
		t.Errorf("got %q", got)
	}
	if got := errorMessage([]byte(`<html>`), "Login failed"); got != "Login failed" {
		t.Errorf("got %q", got)
	}
}

func TestListDevices(t *testing.T) {
	b := newBackend(t)
	c, _ := b.client(models.AuthSession{AccessToken: "fresh"})

	devices, err := c.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(devices) != 2 || devices[0].DeviceFunctionID != 2 || devices[0].CheckPointID != 11 {
		t.Errorf("unexpected devices %+v", devices)
	}

	anonymous, _ := b.client(models.AuthSession{})
	if _, err := anonymous.ListDevices(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestFileSessionStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "session.json")
	store := NewFileSessionStore(path)

	empty, err := store.Load()
	if err != nil || !empty.Empty() {
		t.Fatalf("expected an empty session from a missing file: %+v %v", empty, err)
	}

	want := models.AuthSession{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := NewFileSessionStore(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
