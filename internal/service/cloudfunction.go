package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// FunctionInvoker posts JSON payloads to HTTP-triggered Cloud Functions.
type FunctionInvoker struct {
	timeout         time.Duration
	authenticated   bool
	credentialsFile string
	maxBody         int64
	// plain is used when authenticated is false.
	plain *http.Client
}

// NewFunctionInvoker creates an invoker. With authenticated set each call
// carries a Google-signed ID token whose audience is the function URL.
func NewFunctionInvoker(timeout time.Duration, authenticated bool, credentialsFile string) *FunctionInvoker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FunctionInvoker{
		timeout:         timeout,
		authenticated:   authenticated,
		credentialsFile: credentialsFile,
		maxBody:         64 << 10,
		plain:           &http.Client{Timeout: timeout},
	}
}

// Invoke posts payload to url and returns the response body.
func (f *FunctionInvoker) Invoke(ctx context.Context, url string, payload json.RawMessage) (string, error) {
	client, err := f.clientFor(ctx, url)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%d %s for url: %s", resp.StatusCode, http.StatusText(resp.StatusCode), url)
	}
	return string(body), nil
}

func (f *FunctionInvoker) clientFor(ctx context.Context, audience string) (*http.Client, error) {
	if !f.authenticated {
		return f.plain, nil
	}
	var opts []idtoken.ClientOption
	if f.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(f.credentialsFile))
	}
	c, err := idtoken.NewClient(ctx, audience, opts...)
	if err != nil {
		return nil, fmt.Errorf("idtoken.NewClient: %w", err)
	}
	c.Timeout = f.timeout
	return c, nil
}
