package postgrestrepos

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/supabase-community/postgrest-go"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
)

const restPath = "/rest/v1"

// postgrest-go reports error responses as "(<code>) <message>"
var errCodeRegex = regexp.MustCompile(`^\((\w*)\) `)

// PostgREST error raised by Single() when no row matched
const codeNoRows = "PGRST116"

// Client queries the Supabase REST API on behalf of the user whose access token is in the request context.
type Client struct {
	baseURL   string
	anonKey   string
	transport http.RoundTripper
}

// NewClient returns a Client of the project at projectURL. A nil transport means http.DefaultTransport.
func NewClient(projectURL, anonKey string, transport http.RoundTripper) (*Client, error) {
	baseURL := strings.TrimRight(projectURL, "/") + restPath
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, errors.Wrap(err, "parsing project URL")
	}
	return &Client{baseURL: baseURL, anonKey: anonKey, transport: transport}, nil
}

func NewClientFromConfig(conf *core.Config) (*Client, error) {
	return NewClient(conf.Supabase.URL, conf.Supabase.AnonKey, nil)
}

// from starts a query on table. Row level security applies to the user of ctx, or to the anon role.
func (c *Client) from(ctx context.Context, table string) *postgrest.QueryBuilder {
	token, ok := auth.AccessTokenFromContext(ctx)
	if !ok {
		token = c.anonKey
	}

	client := postgrest.NewClient(c.baseURL, "", nil).
		SetApiKey(c.anonKey).
		SetAuthToken(token)
	client.Transport.Parent = contextTransport{ctx: ctx, parent: c.transport}
	return client.From(table)
}

// contextTransport binds the requests of a postgrest client, which has no context support, to ctx.
type contextTransport struct {
	ctx    context.Context
	parent http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	parent := t.parent
	if parent == nil {
		parent = http.DefaultTransport
	}
	return parent.RoundTrip(req.WithContext(t.ctx))
}

// errorCode returns the PostgREST error code carried by err, if any.
func errorCode(err error) string {
	if m := errCodeRegex.FindStringSubmatch(errors.Cause(err).Error()); m != nil {
		return m[1]
	}
	return ""
}
