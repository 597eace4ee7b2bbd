// Package oauth implements the authorization-code + PKCE login shared by the
// remote providers, and persists the resulting tokens in the credential
// manager.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	"done/internal/credentials"
	"done/internal/utils"
)

// pendingTTL bounds how long an authorization request stays redeemable.
const pendingTTL = 10 * time.Minute

// clientTimeout matches the timeout used by the provider HTTP clients.
const clientTimeout = 30 * time.Second

var (
	// ErrNoToken is returned when no token has been stored for a provider.
	ErrNoToken = errors.New("no token stored")
	// ErrInvalidState is returned for an unknown, reused or expired state.
	ErrInvalidState = errors.New("invalid or expired oauth state")
	// ErrMissingCode is returned when the redirect carries no code.
	ErrMissingCode = errors.New("redirect carries no authorization code")
	// ErrDenied is returned when the authorization server reports an error.
	ErrDenied = errors.New("authorization denied")
)

// Opener presents an authorization URL to the user.
type Opener func(authURL string) error

// BrowserOpener opens the URL in the default browser.
func BrowserOpener(authURL string) error {
	return browser.OpenURL(authURL)
}

type pendingAuth struct {
	verifier string
	created  time.Time
}

// Flow drives the authorization-code + PKCE exchange for one provider.
type Flow struct {
	config *oauth2.Config
	store  *Store
	opener Opener
	base   http.RoundTripper
	now    func() time.Time

	mu      sync.Mutex
	pending map[string]pendingAuth

	// authorized mirrors whether the store holds a token, so availability
	// checks never reach the keyring.
	authorized atomic.Bool
}

// Option configures a Flow
type Option func(*Flow)

// WithOpener replaces the browser opener, e.g. to print the URL instead.
func WithOpener(o Opener) Option {
	return func(f *Flow) { f.opener = o }
}

// WithTransport sets the transport used for token requests and API calls.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Flow) { f.base = rt }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

// NewFlow creates a flow for config whose tokens are kept in store.
func NewFlow(config *oauth2.Config, store *Store, opts ...Option) *Flow {
	f := &Flow{
		config:  config,
		store:   store,
		opener:  BrowserOpener,
		base:    http.DefaultTransport,
		now:     time.Now,
		pending: make(map[string]pendingAuth),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.authorized.Store(store.HasToken(context.Background()))
	return f
}

// Begin registers a new state/verifier pair, builds the authorization URL
// and hands it to the opener. The URL is returned even when opening fails.
func (f *Flow) Begin(ctx context.Context) (string, error) {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	f.mu.Lock()
	f.prune()
	f.pending[state] = pendingAuth{verifier: verifier, created: f.now()}
	f.mu.Unlock()

	authURL := f.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	if err := f.opener(authURL); err != nil {
		utils.Warnf("Could not open browser, visit this URL to log in:\n%s", authURL)
		return authURL, fmt.Errorf("open authorization url: %w", err)
	}
	return authURL, nil
}

// prune drops expired pending requests. Callers hold f.mu.
func (f *Flow) prune() {
	now := f.now()
	for state, p := range f.pending {
		if now.Sub(p.created) > pendingTTL {
			delete(f.pending, state)
		}
	}
}

// Complete consumes a redirect URI: it checks the state, exchanges the code
// with the matching PKCE verifier and stores the token.
func (f *Flow) Complete(ctx context.Context, uri *url.URL) (*oauth2.Token, error) {
	q := uri.Query()
	if e := q.Get("error"); e != "" {
		if desc := q.Get("error_description"); desc != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrDenied, e, desc)
		}
		return nil, fmt.Errorf("%w: %s", ErrDenied, e)
	}

	state := q.Get("state")
	f.mu.Lock()
	p, ok := f.pending[state]
	delete(f.pending, state)
	f.mu.Unlock()
	if !ok || f.now().Sub(p.created) > pendingTTL {
		return nil, ErrInvalidState
	}

	code := q.Get("code")
	if code == "" {
		return nil, ErrMissingCode
	}

	tok, err := f.config.Exchange(f.clientContext(ctx), code, oauth2.VerifierOption(p.verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := f.store.Save(ctx, tok); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	f.authorized.Store(true)
	utils.Debugf("Stored new token for %s", f.store.backend)
	return tok, nil
}

// Authorized reports whether a token was stored when the flow was created
// or by a later login. It does no I/O.
func (f *Flow) Authorized() bool {
	return f.authorized.Load()
}

// Logout forgets the stored token.
func (f *Flow) Logout(ctx context.Context) error {
	f.authorized.Store(false)
	return f.store.Delete(ctx)
}

// Client returns an HTTP client that authenticates with the stored token,
// refreshing it as needed and persisting refreshed tokens.
func (f *Flow) Client(ctx context.Context) (*http.Client, error) {
	tok, err := f.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			f.authorized.Store(false)
		}
		return nil, err
	}
	f.authorized.Store(true)
	src := &persistingSource{
		src:   f.config.TokenSource(f.clientContext(context.Background()), tok),
		store: f.store,
		last:  tok.AccessToken,
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: src, Base: f.base},
		Timeout:   clientTimeout,
	}, nil
}

func (f *Flow) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: f.base, Timeout: clientTimeout})
}

// persistingSource saves every refreshed token back to the store.
type persistingSource struct {
	src   oauth2.TokenSource
	store *Store

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if err := p.store.Save(context.Background(), tok); err != nil {
			utils.Warnf("Failed to persist refreshed token: %v", err)
		}
	}
	return tok, nil
}

// Store keeps one provider's token in the credential manager.
type Store struct {
	creds   *credentials.Manager
	backend string
}

// NewStore creates a token store for backend.
func NewStore(creds *credentials.Manager, backend string) *Store {
	return &Store{creds: creds, backend: backend}
}
