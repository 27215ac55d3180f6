package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tickerql/tickerql/internal/query"
)

func TestResolveQueryRequiresQuestion(t *testing.T) {
	resolver := &fakeResolver{}
	h := NewHandler(testConfig(t, nil), Dependencies{Resolver: resolver})

	for _, target := range []string{"/api/v1/resolve_query/", "/api/v1/resolve_query/?q=", "/api/v1/resolve_query/?other=1"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", target, rr.Code)
		}
		if strings.TrimSpace(rr.Body.String()) != `{"error":"No query provided."}` {
			t.Fatalf("%s: body = %s", target, rr.Body.String())
		}
	}
	if len(resolver.questions) != 0 {
		t.Fatalf("resolver called with %#v", resolver.questions)
	}
}

func TestResolveQueryAcceptsWhitespaceQuestion(t *testing.T) {
	resolver := &fakeResolver{}
	h := NewHandler(testConfig(t, nil), Dependencies{Resolver: resolver})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/resolve_query/?q=%20", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if len(resolver.questions) != 1 || resolver.questions[0] != " " {
		t.Fatalf("questions = %#v", resolver.questions)
	}
}

func TestResolveQueryReturnsRows(t *testing.T) {
	resolver := query.NewResolver(query.WithExecutor(fakeExecutor{rows: []query.Row{
		query.NewRow([]string{"date", "close"}, []any{"2014-01-02", 10.006667}),
	}}))
	h := NewHandler(testConfig(t, nil), Dependencies{Resolver: resolver})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/resolve_query/?q=first+close", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"response":[{"date":"2014-01-02","close":10.006667}]}` {
		t.Fatalf("body = %s", got)
	}
}

func TestResolveQueryPassesQuestionVerbatim(t *testing.T) {
	resolver := &fakeResolver{}
	h := NewHandler(testConfig(t, nil), Dependencies{Resolver: resolver})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/resolve_query?q=%20max+close%3F", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(resolver.questions) != 1 || resolver.questions[0] != " max close?" {
		t.Fatalf("questions = %#v", resolver.questions)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"response":[]}` {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestResolveQueryExecutionErrorIsStill200(t *testing.T) {
	resolver := query.NewResolver(
		query.WithGenerator(staticGenerator{sql: "SELECT nope FROM core_teslastockdata"}),
		query.WithExecutor(fakeExecutor{err: errors.New(`column "nope" does not exist`)}),
	)
	h := NewHandler(testConfig(t, nil), Dependencies{Resolver: resolver})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/resolve_query/?q=nope", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != `column "nope" does not exist` || body["attempted_query"] != "SELECT nope FROM core_teslastockdata" {
		t.Fatalf("body = %#v", body)
	}
	if _, ok := body["response"]; ok {
		t.Fatal("error payload must not carry a response")
	}
}

func TestResolveQueryOnlyAllowsGet(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{Resolver: &fakeResolver{}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/resolve_query/?q=x", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestResolveQueryWithoutResolver(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/resolve_query/?q=x", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestTranslateEndpoint(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{Generator: staticGenerator{sql: "SELECT MAX(close) FROM core_teslastockdata"}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newRequest(http.MethodPost, "/v1/query/translate", `{"question":"highest close"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if body := decodeBody(t, rr); body["sql"] != "SELECT MAX(close) FROM core_teslastockdata" {
		t.Fatalf("body = %#v", body)
	}
}

func TestTranslateEndpointErrors(t *testing.T) {
	tests := []struct {
		name      string
		generator staticGenerator
		body      string
		status    int
		code      string
	}{
		{name: "invalid json", body: `{`, status: http.StatusBadRequest, code: "INVALID_JSON"},
		{name: "unknown field", body: `{"prompt":"x"}`, status: http.StatusBadRequest, code: "INVALID_JSON"},
		{name: "blank question", body: `{"question":"  "}`, status: http.StatusBadRequest, code: "QUESTION_REQUIRED"},
		{name: "model failure", generator: staticGenerator{err: errors.New("model offline")}, body: `{"question":"x"}`, status: http.StatusBadGateway, code: "TRANSLATE_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(testConfig(t, nil), Dependencies{Generator: tt.generator})
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, newRequest(http.MethodPost, "/v1/query/translate", tt.body))
			if rr.Code != tt.status {
				t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
			}
			if body := decodeBody(t, rr); body["error_code"] != tt.code {
				t.Fatalf("error_code = %#v", body["error_code"])
			}
		})
	}
}

func TestSchemaEndpoint(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["table"] != "core_teslastockdata" {
		t.Fatalf("table = %#v", body["table"])
	}
	columns, _ := body["columns"].([]any)
	if len(columns) != 20 || columns[16] != "TrueRange" {
		t.Fatalf("columns = %#v", columns)
	}
	if ddl, _ := body["ddl"].(string); !strings.Contains(ddl, `CREATE TABLE "core_teslastockdata"`) {
		t.Fatalf("ddl = %q", ddl)
	}
}

func TestPageRendersFormWithoutQuestion(t *testing.T) {
	resolver := &fakeResolver{}
	h := NewHandler(testConfig(t, nil), Dependencies{Resolver: resolver})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `<form method="get" action="/">`) {
		t.Fatalf("body = %s", rr.Body.String())
	}
	if len(resolver.questions) != 0 {
		t.Fatal("resolver must not run without a question")
	}
}

func TestPageRendersRowsAndEscapesValues(t *testing.T) {
	resolver := &fakeResolver{resolution: query.Resolution{Rows: []query.Row{
		query.NewRow([]string{"date", "close"}, []any{"2014-01-02", "<b>10</b>"}),
	}}}
	h := NewHandler(testConfig(t, nil), Dependencies{Resolver: resolver})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?q=first+close", nil))
	body := rr.Body.String()
	if !strings.Contains(body, "<th>date</th><th>close</th>") {
		t.Fatalf("missing header row: %s", body)
	}
	if !strings.Contains(body, "&lt;b&gt;10&lt;/b&gt;") {
		t.Fatalf("value not escaped: %s", body)
	}
	if !strings.Contains(body, `value="first close"`) {
		t.Fatalf("question not echoed: %s", body)
	}
}

func TestPageRendersErrorAndAttemptedQuery(t *testing.T) {
	resolver := &fakeResolver{resolution: query.Resolution{Error: "syntax error", AttemptedQuery: "SELEC 1"}}
	h := NewHandler(testConfig(t, nil), Dependencies{Resolver: resolver})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?q=oops", nil))
	body := rr.Body.String()
	if !strings.Contains(body, `<p class="error">syntax error</p>`) || !strings.Contains(body, "<pre>SELEC 1</pre>") {
		t.Fatalf("body = %s", body)
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/console", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}
