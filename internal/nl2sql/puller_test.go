package nl2sql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
)

func TestPullAllRequestsEveryModel(t *testing.T) {
	var mu sync.Mutex
	var pulled []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pull" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		pulled = append(pulled, body.Model)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	puller, err := NewModelPuller(srv.URL, 0, nil)
	if err != nil {
		t.Fatalf("NewModelPuller() error = %v", err)
	}
	if err := puller.PullAll(context.Background(), []string{"llama2", "mistral"}); err != nil {
		t.Fatalf("PullAll() error = %v", err)
	}
	sort.Strings(pulled)
	if len(pulled) != 2 || pulled[0] != "llama2" || pulled[1] != "mistral" {
		t.Fatalf("pulled = %#v", pulled)
	}
}

func TestPullReportsErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"pull model manifest: file does not exist"}`))
	}))
	defer srv.Close()

	puller, err := NewModelPuller(srv.URL, 0, nil)
	if err != nil {
		t.Fatalf("NewModelPuller() error = %v", err)
	}
	if err := puller.Pull(context.Background(), "nope"); err == nil {
		t.Fatal("expected pull error")
	}
}

func TestPullRequiresModelName(t *testing.T) {
	puller, err := NewModelPuller("http://localhost:11434", 0, nil)
	if err != nil {
		t.Fatalf("NewModelPuller() error = %v", err)
	}
	if err := puller.Pull(context.Background(), " "); err == nil {
		t.Fatal("expected error for blank model")
	}
}

func TestPullAllEmptyListIsNoop(t *testing.T) {
	puller, err := NewModelPuller("http://127.0.0.1:1", 0, nil)
	if err != nil {
		t.Fatalf("NewModelPuller() error = %v", err)
	}
	if err := puller.PullAll(context.Background(), nil); err != nil {
		t.Fatalf("PullAll(nil) error = %v", err)
	}
}
