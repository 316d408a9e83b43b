package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
)

// Source provides seed data.
type Source interface {
	Fetch(ctx context.Context) (*Seed, error)
	String() string
}

// FileSource reads a seed JSON file.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(ctx context.Context) (*Seed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

func (s FileSource) String() string { return "file:" + s.Path }

// EmbeddedSource serves the built-in seed.
type EmbeddedSource struct{}

func (EmbeddedSource) Fetch(ctx context.Context) (*Seed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Parse(defaultJSON)
}

func (EmbeddedSource) String() string { return "embedded" }

// HTTPSource fetches seed data from an init-data endpoint. Both the enveloped
// response {"success", "data"} and a bare seed document are accepted.
type HTTPSource struct {
	URL      string
	Client   *http.Client
	Attempts uint
	Delay    time.Duration
}

func (s HTTPSource) Fetch(ctx context.Context) (*Seed, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	attempts := s.Attempts
	if attempts == 0 {
		attempts = 3
	}
	delay := s.Delay
	if delay == 0 {
		delay = time.Second
	}

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode >= 500 {
				return fmt.Errorf("seed server error (%d): %s", resp.StatusCode, string(data))
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("seed request failed (%d): %s", resp.StatusCode, string(data)))
			}
			body = data
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch seed from %s: %w", s.URL, err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
		if !env.Success {
			return nil, fmt.Errorf("seed server reported failure: %s", env.Error)
		}
		body = env.Data
	}
	return Parse(body)
}

func (s HTTPSource) String() string { return s.URL }

// Fallback uses Primary unless it does not exist, in which case Secondary is used.
type Fallback struct {
	Primary   Source
	Secondary Source
}

func (f Fallback) Fetch(ctx context.Context) (*Seed, error) {
	s, err := f.Primary.Fetch(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		return f.Secondary.Fetch(ctx)
	}
	return s, err
}

func (f Fallback) String() string {
	return f.Primary.String() + " (fallback " + f.Secondary.String() + ")"
}
