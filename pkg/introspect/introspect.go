// Package introspect fetches the SDL of a running subgraph through its _service field.
package introspect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const DefaultTimeout = 10 * time.Second

const ServiceDefinitionQuery = `{"query":"query SubgraphIntrospectQuery { _service { sdl } }","operationName":"SubgraphIntrospectQuery","variables":{}}`

var ErrIntrospectionUnsupported = errors.New("subgraph does not expose _service")

// GQLErr holds the errors array of a GraphQL response.
type GQLErr []string

func (g GQLErr) Error() string {
	var builder strings.Builder
	for i, m := range g {
		if i > 0 {
			_, _ = builder.WriteString("; ")
		}
		_, _ = builder.WriteString(m)
	}
	return builder.String()
}

// Client introspects subgraphs over HTTP.
type Client struct {
	httpClient *http.Client
}

// New returns a Client, a nil httpClient gets a client with DefaultTimeout.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{httpClient: httpClient}
}

// Introspect returns the SDL served at url.
func (c *Client) Introspect(ctx context.Context, url string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte(ServiceDefinitionQuery)))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	if !gjson.ValidBytes(body) {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("decode response: invalid json")
	}

	if errs := gjson.GetBytes(body, "errors"); errs.IsArray() && len(errs.Array()) > 0 {
		messages := make(GQLErr, 0, len(errs.Array()))
		for _, e := range errs.Array() {
			messages = append(messages, e.Get("message").String())
		}
		if mentionsService(messages) {
			return "", fmt.Errorf("%w: %w", ErrIntrospectionUnsupported, messages)
		}
		return "", fmt.Errorf("response error: %w", messages)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	sdl := gjson.GetBytes(body, "data._service.sdl")
	if !sdl.Exists() || sdl.Type != gjson.String {
		return "", ErrIntrospectionUnsupported
	}
	return sdl.String(), nil
}

func mentionsService(messages GQLErr) bool {
	for _, m := range messages {
		if strings.Contains(m, "_service") {
			return true
		}
	}
	return false
}
