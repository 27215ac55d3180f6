// Package tickerqlctl is a thin HTTP client for the tickerql API.
package tickerqlctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type request struct {
	method string
	path   string
	body   []byte
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

	fs := flag.NewFlagSet("tickerqlctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "tickerql API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 2*time.Minute), "HTTP timeout (e.g. 30s)")
	output := fs.String("output", "json", "resolve output format: json|table")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}
	if *output != "json" && *output != "table" {
		_, _ = fmt.Fprintf(stderr, "invalid -output %q\n", *output)
		return 2
	}

	command := strings.TrimSpace(fs.Arg(0))
	question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))

	var req request
	switch command {
	case "health":
		req = request{method: http.MethodGet, path: "/v1/health"}
	case "ready":
		req = request{method: http.MethodGet, path: "/v1/ready"}
	case "schema":
		req = request{method: http.MethodGet, path: "/v1/schema"}
	case "verify-snapshot":
		req = request{method: http.MethodPost, path: "/v1/snapshot/verify"}
	case "resolve":
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "resolve requires a question")
			return 2
		}
		req = request{method: http.MethodGet, path: "/api/v1/resolve_query/?q=" + url.QueryEscape(question)}
	case "translate":
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "translate requires a question")
			return 2
		}
		body, _ := json.Marshal(map[string]string{"question": question})
		req = request{method: http.MethodPost, path: "/v1/query/translate", body: body}
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req, endpoint, *apiKey)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	switch command {
	case "translate":
		return printSQL(stdout, stderr, responseBody)
	case "resolve":
		return printResolution(stdout, stderr, responseBody, *output)
	}
	printBody(stdout, responseBody)
	return 0
}

func doRequest(ctx context.Context, client *http.Client, in request, endpoint, apiKey string) (int, []byte, error) {
	var body io.Reader
	if in.body != nil {
		body = bytes.NewReader(in.body)
	}
	req, err := http.NewRequestWithContext(ctx, in.method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
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

func printSQL(stdout, stderr io.Writer, raw []byte) int {
	var payload struct {
		SQL string `json:"sql"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		_, _ = fmt.Fprintf(stderr, "decode response: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, strings.TrimSpace(payload.SQL))
	return 0
}

// printResolution exits 1 when the API reports that the generated SQL
// failed, after printing the attempted query.
func printResolution(stdout, stderr io.Writer, raw []byte, output string) int {
	var payload struct {
		Error          *string `json:"error"`
		AttemptedQuery string  `json:"attempted_query"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		_, _ = fmt.Fprintf(stderr, "decode response: %v\n", err)
		return 1
	}
	if payload.Error != nil {
		_, _ = fmt.Fprintf(stderr, "query failed: %s\n", *payload.Error)
		if payload.AttemptedQuery != "" {
			_, _ = fmt.Fprintf(stderr, "attempted query:\n%s\n", strings.TrimSpace(payload.AttemptedQuery))
		}
		return 1
	}
	if output == "table" {
		writeTable(stdout, raw)
		return 0
	}
	printBody(stdout, raw)
	return 0
}

// writeTable prints rows with columns in response order.
func writeTable(w io.Writer, raw []byte) {
	columns, rows := orderedRows(raw)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

// orderedRows decodes {"response": [...]} token by token; a map would lose
// the column order the server sent.
func orderedRows(raw []byte) ([]string, [][]string) {
	var envelope struct {
		Response []json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, nil
	}

	var columns []string
	rows := make([][]string, 0, len(envelope.Response))
	for i, item := range envelope.Response {
		decoder := json.NewDecoder(bytes.NewReader(item))
		decoder.UseNumber()
		if _, err := decoder.Token(); err != nil {
			continue
		}
		var row []string
		for decoder.More() {
			key, err := decoder.Token()
			if err != nil {
				break
			}
			var value any
			if err := decoder.Decode(&value); err != nil {
				break
			}
			if i == 0 {
				columns = append(columns, fmt.Sprint(key))
			}
			row = append(row, formatCell(value))
		}
		rows = append(rows, row)
	}
	return columns, rows
}

func formatCell(value any) string {
	if value == nil {
		return "NULL"
	}
	return fmt.Sprint(value)
}

func printBody(w io.Writer, raw []byte) {
	if pretty, ok := prettyJSON(raw); ok {
		_, _ = fmt.Fprintln(w, pretty)
		return
	}
	if len(raw) > 0 {
		_, _ = fmt.Fprintln(w, string(raw))
	}
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(raw), "", "  "); err != nil {
		return "", false
	}
	return out.String(), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: tickerqlctl [flags] <command> [question]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                 GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema                GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  verify-snapshot       POST /v1/snapshot/verify")
	_, _ = fmt.Fprintln(w, "  resolve <question>    GET /api/v1/resolve_query/?q=<question>")
	_, _ = fmt.Fprintln(w, "  translate <question>  POST /v1/query/translate")
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
