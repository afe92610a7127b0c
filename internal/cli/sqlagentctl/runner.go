package sqlagentctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type command struct {
	method string
	path   string
	body   any
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("sqlagentctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8000"), "sqlagent API base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 60s)")
	output := fs.String("o", "query_logs.parquet", "output file for history-export")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	name := strings.TrimSpace(fs.Arg(0))
	rest := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
	var cmd command
	switch name {
	case "health":
		cmd = command{method: http.MethodGet, path: "/v1/health"}
	case "ready":
		cmd = command{method: http.MethodGet, path: "/v1/ready"}
	case "ask":
		if rest == "" {
			_, _ = fmt.Fprintln(stderr, "ask requires a question")
			return 2
		}
		cmd = command{method: http.MethodPost, path: "/v1/chat", body: map[string]any{"question": rest, "chat_history": []any{}}}
	case "query":
		if rest == "" {
			_, _ = fmt.Fprintln(stderr, "query requires a SQL statement")
			return 2
		}
		cmd = command{method: http.MethodPost, path: "/v1/query", body: map[string]any{"sql": rest}}
	case "history":
		cmd = command{method: http.MethodGet, path: "/v1/history"}
	case "history-clear":
		cmd = command{method: http.MethodDelete, path: "/v1/history"}
	case "history-export":
		cmd = command{method: http.MethodGet, path: "/v1/history/export"}
	case "schema":
		cmd = command{method: http.MethodGet, path: "/v1/schema"}
	case "schema-reload":
		cmd = command{method: http.MethodPost, path: "/v1/schema/reload"}
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + cmd.path
	code, responseBody, err := doRequest(ctx, client, cmd.method, endpoint, cmd.body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if name == "history-export" {
		if err := os.WriteFile(*output, responseBody, 0o644); err != nil {
			_, _ = fmt.Fprintf(stderr, "write %s: %v\n", *output, err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "wrote %d bytes to %s\n", len(responseBody), *output)
		return 0
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
	} else if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}

	// A chat turn that failed still returns 200.
	if name == "ask" && !turnSucceeded(responseBody) {
		return 1
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, url string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func turnSucceeded(raw []byte) bool {
	var turn struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(raw, &turn); err != nil {
		return false
	}
	return turn.Success
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: sqlagentctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health            GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready             GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  ask <question>    POST /v1/chat")
	_, _ = fmt.Fprintln(w, "  query <sql>       POST /v1/query")
	_, _ = fmt.Fprintln(w, "  history           GET /v1/history")
	_, _ = fmt.Fprintln(w, "  history-clear     DELETE /v1/history")
	_, _ = fmt.Fprintln(w, "  history-export    GET /v1/history/export (writes -o)")
	_, _ = fmt.Fprintln(w, "  schema            GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  schema-reload     POST /v1/schema/reload")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
