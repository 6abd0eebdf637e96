// Package structure downloads predicted protein structures from an AlphaFold style service.
//
// The service answers GET {base}/prediction/{id} with a JSON array of entries; the structure of
// the first entry is downloaded from its pdbUrl.
package structure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/internal/ctxlog"
)

// DefaultBaseURL is the public AlphaFold API.
const DefaultBaseURL = "https://alphafold.ebi.ac.uk/api"

const (
	defaultRetries = 2
	defaultBackoff = 500 * time.Millisecond
	defaultTimeout = time.Minute
)

// Fetcher returns the raw structure text of a protein.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (string, error)
}

// StructureNotFoundError reports an identifier the service has no usable structure for.
type StructureNotFoundError struct {
	ID     string
	Reason string
}

func (e *StructureNotFoundError) Error() string {
	return fmt.Sprintf("structure %s not found: %s", e.ID, e.Reason)
}

type entry struct {
	PdbURL string `json:"pdbUrl"`
}

// Client fetches structures over HTTP. Transport errors and 5xx answers are retried with a
// doubling backoff; every other failure is final.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
}

type ClientOption func(c *Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRetries sets how many times a failed request is repeated.
func WithRetries(retries int) ClientOption {
	return func(c *Client) {
		c.retries = retries
	}
}

// WithBackoff sets the wait before the first retry.
func WithBackoff(backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff = backoff
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retries:    defaultRetries,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retries < 0 {
		c.retries = 0
	}

	return c
}

// Fetch returns the structure text of the first prediction for id.
func (c *Client) Fetch(ctx context.Context, id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", &StructureNotFoundError{ID: id, Reason: "empty identifier"}
	}

	logger := ctxlog.FromContext(ctx).With("structure_id", id)

	status, body, err := c.get(ctx, c.baseURL+"/prediction/"+url.PathEscape(id))
	if err != nil {
		return "", errors.Wrapf(err, "unable to look up %s", id)
	}
	if status != http.StatusOK {
		return "", &StructureNotFoundError{ID: id, Reason: fmt.Sprintf("lookup answered %d", status)}
	}

	var entries []entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return "", &StructureNotFoundError{ID: id, Reason: "malformed lookup answer: " + err.Error()}
	}
	if len(entries) == 0 {
		return "", &StructureNotFoundError{ID: id, Reason: "no prediction"}
	}
	if entries[0].PdbURL == "" {
		return "", &StructureNotFoundError{ID: id, Reason: "first prediction has no pdbUrl"}
	}
	logger.Info("Found prediction.", "entries", len(entries), "pdb_url", entries[0].PdbURL)

	status, body, err = c.get(ctx, entries[0].PdbURL)
	if err != nil {
		return "", errors.Wrapf(err, "unable to download %s", id)
	}
	if status != http.StatusOK {
		return "", &StructureNotFoundError{ID: id, Reason: fmt.Sprintf("download answered %d", status)}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", &StructureNotFoundError{ID: id, Reason: "empty structure"}
	}
	logger.Info("Downloaded structure.", "bytes", len(body))

	return string(body), nil
}

type answer struct {
	status int
	body   []byte
}

// get performs a GET with retries and returns the final status and body. A 5xx answer is
// returned as an error once retries are exhausted.
func (c *Client) get(ctx context.Context, target string) (int, []byte, error) {
	logger := ctxlog.FromContext(ctx)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.backoff
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0

	attempts := 0
	var op backoff.OperationWithData[answer] = func() (answer, error) {
		attempts++
		status, body, err := c.do(ctx, target)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return answer{}, backoff.Permanent(ctx.Err())
			}
			return answer{}, err
		case status >= http.StatusInternalServerError:
			return answer{}, errors.Errorf("%s answered %d", target, status)
		}
		return answer{status: status, body: body}, nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Retrying request.", "url", target, "attempt", attempts, "wait", wait, "error", err)
	}

	policyCtx := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.retries)), ctx)
	ans, err := backoff.RetryNotifyWithData(op, policyCtx, notify)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, nil, errors.Wrapf(err, "giving up after %d attempts", attempts)
	}

	return ans.status, ans.body, nil
}

func (c *Client) do(ctx context.Context, target string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, errors.Wrap(err, "unable to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, errors.Wrap(err, "unable to execute request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrap(err, "unable to read response body")
	}

	return resp.StatusCode, body, nil
}
