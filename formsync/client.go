package formsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the form backend's integration API. Calls are spaced by a
// client-side rate limit and are not retried.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	ticker  *time.Ticker
}

func NewClient(baseURL, serviceToken string, ratePerMin int) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("form backend base url is empty")
	}
	if strings.TrimSpace(serviceToken) == "" {
		return nil, errors.New("form backend service token is empty")
	}
	if ratePerMin <= 0 {
		ratePerMin = defaultRatePerMin
	}
	return &Client{
		baseURL: baseURL,
		token:   serviceToken,
		http:    &http.Client{Timeout: 30 * time.Second},
		ticker:  time.NewTicker(time.Minute / time.Duration(ratePerMin)),
	}, nil
}

func NewTenantClient(t Tenant) (Fetcher, error) {
	return NewClient(t.BaseURL, t.ServiceToken, t.RateLimitPerMin)
}

func (c *Client) Close() {
	c.ticker.Stop()
}

func (c *Client) FetchEmployees(ctx context.Context, updatedAfter *time.Time) ([]EmployeeDTO, error) {
	params := url.Values{}
	if updatedAfter != nil {
		params.Set("updatedAfter", updatedAfter.UTC().Format(time.RFC3339Nano))
	}
	var out []EmployeeDTO
	if err := c.getJSON(ctx, "/integration/employees", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchSubmissions lists submissions of one document type with work dates in
// [from, to]. Empty bounds are omitted.
func (c *Client) FetchSubmissions(ctx context.Context, docType DocumentType, from, to string, updatedAfter *time.Time) ([]SubmissionDTO, error) {
	params := url.Values{}
	params.Set("documentType", string(docType))
	if from != "" {
		params.Set("from", from)
	}
	if to != "" {
		params.Set("to", to)
	}
	if updatedAfter != nil {
		params.Set("updatedAfter", updatedAfter.UTC().Format(time.RFC3339Nano))
	}
	var out []SubmissionDTO
	if err := c.getJSON(ctx, "/integration/submissions", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ticker.C:
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("form backend error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}
