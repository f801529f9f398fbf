package identitysvc

import (
	"net/http"
	"strings"
	"time"

	"github.com/supabase-community/gotrue-go"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
)

const (
	authPath      = "/auth/v1"
	recoverPath   = authPath + "/recover"
	resetPagePath = "/reset-password"
)

// Options configure the providers built by a Factory.
type Options struct {
	URL     string // project URL, e.g. https://<ref>.supabase.co
	AnonKey string
	// SiteURL is where password reset emails send the user back to.
	SiteURL string

	Sessions auth.SessionRepository
	Logger   core.Logger

	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper
	Timeout   time.Duration
	// RefreshMargin is how long before expiry sessions are refreshed.
	RefreshMargin time.Duration
	NowFunc       func() time.Time
}

// Factory builds the Provider of each browser session. All providers share one GoTrue client.
type Factory struct {
	client   gotrue.Client
	sessions auth.SessionRepository
	logger   core.Logger
	margin   time.Duration
	nowFunc  func() time.Time
}

func NewFactory(opts Options) *Factory {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	margin := opts.RefreshMargin
	if margin == 0 {
		margin = defaultRefreshMargin
	}
	nowFunc := opts.NowFunc
	if nowFunc == nil {
		nowFunc = time.Now
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if opts.SiteURL != "" {
		transport = &resetRedirect{next: transport, target: strings.TrimRight(opts.SiteURL, "/") + resetPagePath}
	}

	baseURL := strings.TrimRight(opts.URL, "/") + authPath
	client := gotrue.New("", opts.AnonKey).
		WithCustomGoTrueURL(baseURL).
		WithClient(http.Client{Transport: transport, Timeout: timeout})

	return &Factory{
		client:   client,
		sessions: opts.Sessions,
		logger:   opts.Logger,
		margin:   margin,
		nowFunc:  nowFunc,
	}
}

// NewFactoryFromConfig builds a Factory for the configured Supabase project.
func NewFactoryFromConfig(conf *core.Config, sessions auth.SessionRepository, logger core.Logger) *Factory {
	return NewFactory(Options{
		URL:      conf.Supabase.URL,
		AnonKey:  conf.Supabase.AnonKey,
		SiteURL:  conf.Supabase.SiteURL,
		Sessions: sessions,
		Logger:   logger,
	})
}

// New returns the provider of the browser session key.
func (f *Factory) New(key string) *Provider {
	return &Provider{
		hub:      auth.NewHub(),
		client:   f.client,
		key:      key,
		sessions: f.sessions,
		logger:   f.logger,
		margin:   f.margin,
		nowFunc:  f.nowFunc,
	}
}

// resetRedirect adds the redirect_to parameter to password recovery requests,
// which the GoTrue client has no field for.
type resetRedirect struct {
	next   http.RoundTripper
	target string
}

func (rt *resetRedirect) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost || !strings.HasSuffix(req.URL.Path, recoverPath) {
		return rt.next.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	q := req.URL.Query()
	q.Set("redirect_to", rt.target)
	req.URL.RawQuery = q.Encode()
	return rt.next.RoundTrip(req)
}
