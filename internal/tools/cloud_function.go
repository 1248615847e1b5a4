package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// FunctionCaller posts a JSON payload to an HTTP endpoint.
type FunctionCaller interface {
	Invoke(ctx context.Context, url string, payload json.RawMessage) (string, error)
}

// TriggerCloudFunctionTool calls an HTTP-triggered Cloud Function.
func TriggerCloudFunctionTool(fn FunctionCaller) Tool {
	return Tool{
		Name:        "TriggerCloudFunction",
		Description: `Use to trigger an HTTP Cloud Function. Input must be a string containing the function URL followed by a JSON payload, like 'https://your-url {"key": "value"}'.`,
		Execute: func(ctx context.Context, input string) (string, error) {
			target, payload, err := ParseTrigger(input)
			if err != nil {
				return "", Fail("triggering Cloud Function", err)
			}
			body, err := fn.Invoke(ctx, target, payload)
			if err != nil {
				return "", Fail("triggering Cloud Function", err)
			}
			return "Successfully triggered Cloud Function. Response: " + body, nil
		},
	}
}

// ParseTrigger splits "URL {json}" into the URL and the payload. A missing
// payload becomes an empty JSON object.
func ParseTrigger(input string) (string, json.RawMessage, error) {
	input = strings.TrimSpace(input)
	target, rest, _ := strings.Cut(input, " ")
	if target == "" {
		return "", nil, errors.New("function URL is required")
	}
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", nil, fmt.Errorf("invalid function URL %q", target)
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return target, json.RawMessage("{}"), nil
	}
	if !json.Valid([]byte(rest)) {
		return "", nil, fmt.Errorf("payload is not valid JSON: %s", rest)
	}
	return target, json.RawMessage(rest), nil
}
