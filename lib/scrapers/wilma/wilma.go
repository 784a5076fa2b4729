// Package wilma extracts typed school data (schedules, messages,
// recipients) out of a Wilma portal instance. The portal exposes no
// stable API: payloads are embedded JSON fragments inside script tags,
// server-rendered tables and hidden form fields, so extraction is
// best-effort with ordered fallback strategies and empty results on
// structural mismatch.
package wilma

import (
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"
	"wilma-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/wilma")

// the session cookie the portal sets on a successful login POST
const sessionCookie = "Wilma2SID"

// AuthError covers credential and session establishment failures:
// missing session token, missing session cookie, undiscoverable user
// prefix.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wilma auth: %s: %s", e.Reason, e.Err)
	}
	return fmt.Sprintf("wilma auth: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// APIError covers authenticated request transport failures and
// send/reply attempts the portal rejected.
type APIError struct {
	Path string
	Err  error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wilma api: request to %s failed: %s", e.Path, e.Err)
	}
	return fmt.Sprintf("wilma api: request to %s failed", e.Path)
}

func (e *APIError) Unwrap() error { return e.Err }

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	username string
	password string

	// session fields are owned by mu. login is single-flight: a caller
	// that lost the race re-checks state under the lock and returns
	// without a second handshake.
	mu        sync.Mutex
	sessionId string
	// per-user url path segment, e.g. "/!0411876"
	userPrefix string
}

type ClientOptions struct {
	// base url of the portal instance, e.g. https://school.inschool.fi
	BaseUrl  string
	Username string
	Password string
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" || opts.Username == "" || opts.Password == "" {
		return nil, fmt.Errorf("base url, username and password are all required")
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetHeader("accept", "application/json, text/html")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/wilma/http")

	c := &Client{
		BaseUrl:  baseUrl,
		Http:     client,
		username: opts.Username,
		password: opts.Password,
	}
	return c, nil
}

// UserPrefix returns the per-user path segment discovered during login,
// or "" when no session is held.
func (c *Client) UserPrefix() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userPrefix
}
