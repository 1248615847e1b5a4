package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cortexai/opsagent/internal/llm"
)

func TestOllamaCompleter(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s, want /api/generate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"m","response":" I should use the calculator.\nAction: Calculator\nAction Input: 1+1\nObservation: 2","done":true}`))
	}))
	defer srv.Close()

	c, err := llm.New(llm.Config{Provider: "ollama", BaseURL: srv.URL, Model: "m"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := c.Complete(context.Background(), "Question: 1+1\nThought:")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	want := " I should use the calculator.\nAction: Calculator\nAction Input: 1+1"
	if out != want {
		t.Errorf("Complete = %q, want %q", out, want)
	}
	if got["prompt"] != "Question: 1+1\nThought:" {
		t.Errorf("prompt not forwarded: %v", got["prompt"])
	}
	if got["stream"] != false {
		t.Errorf("stream should be false, got %v", got["stream"])
	}
	opts, _ := got["options"].(map[string]any)
	if stop, _ := opts["stop"].([]any); len(stop) != 1 || stop[0] != "\nObservation:" {
		t.Errorf("stop = %v, want default stop sequence", opts["stop"])
	}
}

func TestOllamaCompleter_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := llm.NewOllamaCompleter(llm.Config{BaseURL: srv.URL})
	if _, err := c.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := llm.New(llm.Config{Provider: "anthropic"}); err == nil {
		t.Error("anthropic without api key should fail")
	}
	if _, err := llm.New(llm.Config{Provider: "gpt-local"}); err == nil {
		t.Error("unknown provider should fail")
	}
	if _, err := llm.New(llm.Config{Provider: "anthropic", APIKey: "k"}); err != nil {
		t.Errorf("anthropic with key: %v", err)
	}
}

func TestCompleterFunc(t *testing.T) {
	var c llm.Completer = llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "Final Answer: " + prompt, nil
	})
	out, _ := c.Complete(context.Background(), "x")
	if out != "Final Answer: x" {
		t.Errorf("got %q", out)
	}
}
