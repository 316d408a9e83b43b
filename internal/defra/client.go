package defra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnhealthy is returned when DefraDB health check fails.
	ErrUnhealthy = errors.New("defra health check failed")
	// ErrGraphQL wraps errors reported in a GraphQL response body.
	ErrGraphQL = errors.New("defra graphql error")
)

const (
	graphqlPath = "/api/v0/graphql"
	schemaPath  = "/api/v0/schema"
	healthPath  = "/health-check"
)

// Client is a DefraDB HTTP/GraphQL client.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a new DefraDB client.
func NewClient(url string) *Client {
	return &Client{
		url:        strings.TrimSuffix(url, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GQLRequest represents a GraphQL request.
type GQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// GQLResponse represents a GraphQL response.
type GQLResponse struct {
	Data   map[string]any `json:"data,omitempty"`
	Errors []GQLError     `json:"errors,omitempty"`
}

// GQLError represents a GraphQL error.
type GQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Error returns the first error message or empty string.
func (r *GQLResponse) Error() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// Err returns all reported errors wrapped in ErrGraphQL, or nil.
func (r *GQLResponse) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(msgs, "; "))
}

// send performs a request against the node and returns the status and body.
func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// HealthCheck checks if DefraDB is healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	status, _, err := c.send(ctx, http.MethodGet, healthPath, "", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	return nil
}

// Execute sends a GraphQL request and returns the response. GraphQL errors
// are left in the response; only transport failures return an error.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any) (*GQLResponse, error) {
	payload, err := json.Marshal(GQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	status, body, err := c.send(ctx, http.MethodPost, graphqlPath, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if status >= 500 {
		return nil, fmt.Errorf("defra server error (status %d): %s", status, body)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("defra returned empty response (status %d)", status)
	}

	var out GQLResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w (body: %s)", err, body)
	}
	return &out, nil
}

// AddSchema adds a GraphQL schema to DefraDB.
func (c *Client) AddSchema(ctx context.Context, schema string) error {
	status, body, err := c.send(ctx, http.MethodPost, schemaPath, "text/plain", strings.NewReader(schema))
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("schema error (status %d): %s", status, body)
	}
	return nil
}

// Query executes a query and returns the results.
func (c *Client) Query(ctx context.Context, query string) (*GQLResponse, error) {
	return c.Execute(ctx, query, nil)
}

// mutate runs op_collection(args) and returns the _docID of the first
// affected document, if any.
func (c *Client) mutate(ctx context.Context, op, collection, args string) (string, error) {
	field := op + "_" + collection
	query := fmt.Sprintf(`mutation { %s(%s) { _docID } }`, field, args)

	resp, err := c.Execute(ctx, query, nil)
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", fmt.Errorf("%s %s: %w", op, collection, err)
	}
	return firstDocID(resp.Data[field]), nil
}

// Create creates a document in a collection and returns its document ID.
func (c *Client) Create(ctx context.Context, collection string, input map[string]any) (string, error) {
	in, err := mapToGraphQLInput(input)
	if err != nil {
		return "", fmt.Errorf("failed to build input: %w", err)
	}
	docID, err := c.mutate(ctx, "create", collection, "input: "+in)
	if err != nil {
		return "", err
	}
	if docID == "" {
		return "", fmt.Errorf("create %s: response has no _docID", collection)
	}
	return docID, nil
}

// Update overwrites the given fields of a document. Fields set to nil are
// cleared.
func (c *Client) Update(ctx context.Context, collection string, docID string, input map[string]any) error {
	in, err := mapToGraphQLInput(input)
	if err != nil {
		return fmt.Errorf("failed to build input: %w", err)
	}
	_, err = c.mutate(ctx, "update", collection, fmt.Sprintf("docID: %q, input: %s", docID, in))
	return err
}

// Delete deletes a document from a collection.
func (c *Client) Delete(ctx context.Context, collection string, docID string) error {
	_, err := c.mutate(ctx, "delete", collection, fmt.Sprintf("docID: %q", docID))
	return err
}

// firstDocID pulls _docID out of a mutation result list.
func firstDocID(raw any) string {
	docs, ok := raw.([]any)
	if !ok || len(docs) == 0 {
		return ""
	}
	doc, ok := docs[0].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := doc["_docID"].(string)
	return id
}

// mapToGraphQLInput renders a map as a GraphQL input object with keys in
// sorted order.
func mapToGraphQLInput(input map[string]any) (string, error) {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := valueToGraphQL(input[k])
		if err != nil {
			return "", fmt.Errorf("field %q: %w", k, err)
		}
		parts = append(parts, k+": "+v)
	}
	return "{" + strings.Join(parts, ", ") + "}", nil
}

// valueToGraphQL renders a Go value as a GraphQL literal.
func valueToGraphQL(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case string:
		// JSON escapes are a subset of GraphQL's; %q is not (\a, \xHH).
		b, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case map[string]any:
		return mapToGraphQLInput(val)
	case []string:
		items := make([]any, len(val))
		for i, s := range val {
			items[i] = s
		}
		return valueToGraphQL(items)
	case []any:
		items := make([]string, len(val))
		for i, item := range val {
			s, err := valueToGraphQL(item)
			if err != nil {
				return "", err
			}
			items[i] = s
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("unsupported value %T: %w", v, err)
	}
	return string(b), nil
}
