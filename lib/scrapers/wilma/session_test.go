package wilma

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"wilma-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

// stubPortal fakes the portal's session endpoints: a json bootstrap
// endpoint, a form login that answers with a session cookie and a
// redirect to the per-user prefix, and authenticated pages that can be
// made to silently redirect to the login page like an expired session
// would.
type stubPortal struct {
	server *httptest.Server

	indexCalls int64
	loginCalls int64

	mu             sync.Mutex
	sessionToken   string
	withholdCookie bool
	prefixInBody   bool
	withholdPrefix bool
	expireRequests int
	pages          map[string]string
	loginDelay     time.Duration
}

func newStubPortal() *stubPortal {
	p := &stubPortal{
		sessionToken: "abc",
		pages:        map[string]string{},
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	return p
}

func (p *stubPortal) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/index_json":
		atomic.AddInt64(&p.indexCalls, 1)
		if p.sessionToken == "" {
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprintf(w, `{"SessionID":%q}`, p.sessionToken)

	case r.URL.Path == "/login" && r.Method == http.MethodPost:
		atomic.AddInt64(&p.loginCalls, 1)
		if p.loginDelay > 0 {
			time.Sleep(p.loginDelay)
		}
		if !p.withholdCookie {
			http.SetCookie(w, &http.Cookie{
				Name:  "Wilma2SID",
				Value: "xyz",
				Path:  "/",
			})
		}
		switch {
		case p.withholdPrefix:
			http.Redirect(w, r, "/home", http.StatusFound)
		case p.prefixInBody:
			// no prefix in the redirect chain, only in an anchor
			fmt.Fprint(w, `<html><body><a href="/!0411876/index">home</a></body></html>`)
		default:
			http.Redirect(w, r, "/!0411876/index", http.StatusFound)
		}

	case r.URL.Path == "/login":
		fmt.Fprint(w, `<html><body><form action="/login">login</form></body></html>`)

	case r.URL.Path == "/home":
		fmt.Fprint(w, `<html><body>nothing here</body></html>`)

	case r.URL.Path == "/!0411876/index":
		fmt.Fprint(w, `<html><body>home</body></html>`)

	default:
		p.mu.Lock()
		expired := p.expireRequests > 0
		if expired {
			p.expireRequests--
		}
		body := p.pages[r.URL.Path]
		p.mu.Unlock()

		if expired {
			http.Redirect(w, r, "/login?LoginResult=Failed", http.StatusFound)
			return
		}
		if body == "" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}
}

func (p *stubPortal) client(t *testing.T) *Client {
	client, err := NewClient(ClientOptions{
		BaseUrl:  p.server.URL,
		Username: "user",
		Password: "hunter2",
	})
	require.NoError(t, err)
	return client
}

func TestLogin(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/wilma")
	defer cleanup()

	portal := newStubPortal()
	defer portal.server.Close()
	client := portal.client(t)

	err := client.Login(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/!0411876", client.UserPrefix())
	require.Equal(t, "xyz", client.cookieValue(sessionCookie))
	require.EqualValues(t, 1, atomic.LoadInt64(&portal.loginCalls))

	// an established session makes ensureAuthenticated a no-op
	err = client.ensureAuthenticated(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt64(&portal.loginCalls))
	require.EqualValues(t, 1, atomic.LoadInt64(&portal.indexCalls))
}

func TestLoginPrefixFromBody(t *testing.T) {
	portal := newStubPortal()
	defer portal.server.Close()
	portal.prefixInBody = true
	client := portal.client(t)

	err := client.Login(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/!0411876", client.UserPrefix())
}

func TestLoginMissingSessionToken(t *testing.T) {
	portal := newStubPortal()
	defer portal.server.Close()
	portal.sessionToken = ""
	client := portal.client(t)

	err := client.Login(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.EqualValues(t, 0, atomic.LoadInt64(&portal.loginCalls))
}

func TestLoginMissingSessionCookie(t *testing.T) {
	portal := newStubPortal()
	defer portal.server.Close()
	portal.withholdCookie = true
	client := portal.client(t)

	err := client.Login(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestLoginUndiscoverablePrefix(t *testing.T) {
	portal := newStubPortal()
	defer portal.server.Close()
	portal.withholdPrefix = true
	client := portal.client(t)

	err := client.Login(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, "", client.UserPrefix())
}

func TestLoginSingleFlight(t *testing.T) {
	portal := newStubPortal()
	defer portal.server.Close()
	portal.loginDelay = 20 * time.Millisecond
	client := portal.client(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = client.ensureAuthenticated(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	// concurrent callers observing no session share one handshake
	require.EqualValues(t, 1, atomic.LoadInt64(&portal.loginCalls))
}

func TestMissingCredentials(t *testing.T) {
	_, err := NewClient(ClientOptions{BaseUrl: "https://school.example"})
	require.Error(t, err)
	_, err = NewClient(ClientOptions{Username: "u", Password: "p"})
	require.Error(t, err)
}

func TestLoginTransportFailure(t *testing.T) {
	portal := newStubPortal()
	portal.server.Close()
	client := portal.client(t)

	err := client.Login(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.True(t, errors.Unwrap(authErr) != nil)
}
