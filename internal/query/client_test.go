package query

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestClient_Signal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/devices/ONT-1/signal" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "online", "power_dbm": -21.5})
	}))
	defer srv.Close()

	info, err := NewClient(srv.URL).Signal(context.Background(), "ONT-1")
	if err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if info.Status != "online" || info.PowerDBm != -21.5 {
		t.Fatalf("info = %+v", info)
	}
}

func TestClient_Trace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/simulation/trace-path" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["start_node"] != "A" || body["end_node"] != "B" {
			t.Errorf("body = %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"nodes": []string{"A", "B"}, "links": []string{"L1"}})
	}))
	defer srv.Close()

	path, err := NewClient(srv.URL).Trace(context.Background(), "A", "B")
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if !reflect.DeepEqual(path.Nodes, []string{"A", "B"}) || !reflect.DeepEqual(path.Links, []string{"L1"}) {
		t.Fatalf("path = %+v", path)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "not_found", "message": "link 'L9' not found"},
		})
	}))
	defer srv.Close()

	err := NewClient(srv.URL).SetLinkStatus(context.Background(), "L9", "down")
	var rerr *RequestError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want RequestError", err)
	}
	if rerr.Status != http.StatusNotFound || rerr.Code != "not_found" {
		t.Fatalf("rerr = %+v", rerr)
	}
}

func TestClient_ErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Undo(context.Background())
	var rerr *RequestError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want RequestError", err)
	}
	if rerr.Message == "" {
		t.Fatalf("expected fallback message, got %+v", rerr)
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewClient(srv.URL).Signal(ctx, "ONT-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
