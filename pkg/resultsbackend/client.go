// Package resultsbackend fetches cached query result sets from the results
// store that the query runner populated.
package resultsbackend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/querylab/workspace-export/internal/resultset"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"go.uber.org/ratelimit"
)

const DefaultMaxRPS = 10

// ErrNotFound means the backend no longer caches the requested result set.
var ErrNotFound = errors.New("results are not cached")

type Client struct {
	apiURL string
	token  string
	rl     ratelimit.Limiter

	cli *http.Client
}

func NewClient(apiURL string, token string, maxRPS int, httpCli ...*http.Client) *Client {
	c := &Client{
		apiURL: apiURL,
		token:  token,
		rl:     ratelimit.New(maxRPS),
		cli:    http.DefaultClient,
	}
	if len(httpCli) == 1 {
		c.cli = httpCli[0]
	}

	return c
}

// FetchTable downloads the result set cached under the given key.
func (c *Client) FetchTable(ctx context.Context, key string) (*resultset.Table, error) {
	c.rl.Take()

	reqURL := fmt.Sprintf("%s/results/%s", c.apiURL, url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "request build failed")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound

	case resp.StatusCode != http.StatusOK:
		return nil, errors.Errorf("unexpected status %s", resp.Status)
	}

	table, err := decodePayload(resp.Body)
	if err != nil {
		zlog.Error().Err(err).Str("key", key).Msg("failed to decode cached results")

		return nil, err
	}

	return table, nil
}
