package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/metrics"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

// ErrNoSession is returned by calls that need a logged in session.
var ErrNoSession = errors.New("No access token available")

// AuthError is returned when the backend refuses the credentials.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return e.Message
}

type Config struct {
	BaseURL         string
	AdditionalRoute string
	LoginRoute      string
	RefreshRoute    string
	DeviceRoute     string
	UploadRoute     string
	ClientID        string
	ClientSecret    string
	Timeout         time.Duration
}

func ConfigFrom(c models.APIConfig) Config {
	return Config{
		BaseURL:         c.BaseURL,
		AdditionalRoute: c.AdditionalRoute,
		LoginRoute:      c.LoginRoute,
		RefreshRoute:    c.RefreshRoute,
		DeviceRoute:     c.DeviceRoute,
		UploadRoute:     c.UploadRoute,
		ClientID:        c.ClientID,
		ClientSecret:    c.ClientSecret,
		Timeout:         c.Timeout(),
	}
}

// File is a multipart attachment of a Request.
type File struct {
	Param string
	Name  string
	Data  []byte
}

// Request describes one call. It is rebuilt for every attempt so it can
// be replayed after a token refresh.
type Request struct {
	Method   string
	Endpoint string
	Body     interface{}
	Query    map[string]string
	Headers  map[string]string
	FormData map[string]string
	Files    []File
}

// Client executes backend calls with the current access token. A 401 is
// answered with exactly one refresh and exactly one retry.
type Client struct {
	http     *resty.Client
	config   Config
	sessions SessionStore

	mu      sync.RWMutex
	session models.AuthSession

	// refreshMu serializes refreshes across concurrent callers.
	refreshMu sync.Mutex
}

func New(config Config, sessions SessionStore) *Client {
	if sessions == nil {
		sessions = &MemorySessionStore{}
	}
	r := resty.New()
	r.SetHeader("Accept", "application/json")
	if config.Timeout > 0 {
		r.SetTimeout(config.Timeout)
	}

	c := &Client{http: r, config: config, sessions: sessions}
	session, err := sessions.Load()
	if err != nil {
		log.Log.Error("api.New(): could not load session: " + err.Error())
	}
	c.session = session
	return c
}

func (c *Client) Config() Config {
	return c.config
}

// FullURL composes base URL, additional route and endpoint.
func (c *Client) FullURL(endpoint string) string {
	if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return strings.TrimRight(c.config.BaseURL, "/") + c.config.AdditionalRoute + endpoint
}

func (c *Client) Session() models.AuthSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession replaces the session and persists it.
func (c *Client) SetSession(session models.AuthSession) {
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	if err := c.sessions.Save(session); err != nil {
		log.Log.Error("api.SetSession(): could not persist session: " + err.Error())
	}
}

func (c *Client) Logout() {
	c.SetSession(models.AuthSession{})
}

// Do executes the request. Non-2xx answers are returned as responses;
// only transport failures produce an error.
func (c *Client) Do(ctx context.Context, req Request) (*resty.Response, error) {
	used := c.Session()
	resp, err := c.execute(ctx, req, used)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusUnauthorized {
		return resp, nil
	}

	if !c.refresh(ctx, used.AccessToken) {
		return resp, nil
	}
	return c.execute(ctx, req, c.Session())
}

func (c *Client) execute(ctx context.Context, req Request, session models.AuthSession) (*resty.Response, error) {
	r := c.http.R().SetContext(ctx)
	if auth := session.Authorization(); auth != "" {
		r.SetHeader("Authorization", auth)
	}
	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json")
		r.SetBody(req.Body)
	}
	if len(req.FormData) > 0 {
		r.SetFormData(req.FormData)
	}
	for _, f := range req.Files {
		r.SetFileReader(f.Param, f.Name, bytes.NewReader(f.Data))
	}
	method := req.Method
	if method == "" {
		method = resty.MethodGet
	}
	return r.Execute(method, c.FullURL(req.Endpoint))
}

// refresh exchanges the refresh token for a new access token. stale is
// the access token that got rejected; when another caller has already
// replaced it the refresh is skipped and the caller just retries.
func (c *Client) refresh(ctx context.Context, stale string) bool {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	current := c.Session()
	if current.AccessToken != "" && current.AccessToken != stale {
		return true
	}
	if current.RefreshToken == "" {
		metrics.TokenRefreshes.WithLabelValues("skipped").Inc()
		return false
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(models.TokenRequest{
			ClientID:     c.config.ClientID,
			ClientSecret: c.config.ClientSecret,
			GrantType:    "refresh_token",
			RefreshToken: current.RefreshToken,
		}).
		Post(c.FullURL(c.config.RefreshRoute))
	if err != nil {
		log.Log.Error("api.refresh(): " + err.Error())
		metrics.TokenRefreshes.WithLabelValues("failed").Inc()
		return false
	}
	if resp.StatusCode() != http.StatusOK {
		log.Log.Warning("api.refresh(): refresh rejected with status " + strconv.Itoa(resp.StatusCode()))
		metrics.TokenRefreshes.WithLabelValues("failed").Inc()
		return false
	}

	var token models.TokenResponse
	if err := json.Unmarshal(resp.Body(), &token); err != nil || token.AccessToken == "" {
		log.Log.Warning("api.refresh(): refresh response has no access token")
		metrics.TokenRefreshes.WithLabelValues("failed").Inc()
		return false
	}

	next := current
	next.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		next.RefreshToken = token.RefreshToken
	}
	if token.TokenType != "" {
		next.TokenType = token.TokenType
	}
	c.SetSession(next)
	metrics.TokenRefreshes.WithLabelValues("ok").Inc()
	log.Log.Info("api.refresh(): access token refreshed")
	return true
}

// Login authenticates with the password grant. It bypasses the refresh
// logic and stores the new session on success.
func (c *Client) Login(ctx context.Context, username, password string) (models.AuthSession, models.User, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(models.TokenRequest{
			ClientID:     c.config.ClientID,
			ClientSecret: c.config.ClientSecret,
			GrantType:    "password",
			Username:     username,
			Password:     password,
		}).
		Post(c.FullURL(c.config.LoginRoute))
	if err != nil {
		return models.AuthSession{}, models.User{}, err
	}

	var token models.TokenResponse
	decodeErr := json.Unmarshal(resp.Body(), &token)
	if resp.StatusCode() != http.StatusOK || decodeErr != nil || token.AccessToken == "" {
		return models.AuthSession{}, models.User{}, &AuthError{
			StatusCode: resp.StatusCode(),
			Message:    errorMessage(resp.Body(), "Login failed"),
		}
	}

	session := models.AuthSession{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}
	if session.TokenType == "" {
		session.TokenType = models.DefaultTokenType
	}
	c.SetSession(session)
	user := models.User{
		FullName: token.FullName,
		Username: token.Username,
		UserID:   token.UserID,
		ComID:    token.ComID,
	}
	return session, user, nil
}

// errorMessage extracts error_description or message from a JSON error
// body.
func errorMessage(body []byte, fallback string) string {
	var e struct {
		ErrorDescription string `json:"error_description"`
		Message          string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.ErrorDescription != "" {
			return e.ErrorDescription
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return fallback
}
