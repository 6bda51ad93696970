package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/wwbp/BCFG-API/internal/store"
)

func jsonReader(t *testing.T, payload interface{}) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	return bytes.NewReader(body)
}

func newAdminServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	repo := store.NewMemory()
	r := chi.NewRouter()
	NewAdminHandler(repo).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo
}

func putJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, url, jsonReader(t, payload))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func TestPromptConfigRoundTrip(t *testing.T) {
	srv, _ := newAdminServer(t)

	// Defaults come back before anything is saved.
	resp, err := http.Get(srv.URL + "/api/prompt")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	got := decodeBody(t, resp)
	if got["num_rounds"] != float64(5) {
		t.Errorf("Expected default num_rounds 5, got %v", got["num_rounds"])
	}

	resp = putJSON(t, srv.URL+"/api/prompt", map[string]interface{}{
		"persona":        "You are a study coach.",
		"knowledge":      "Exams run in week 10.",
		"num_activities": 2,
		"num_rounds":     4,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/prompt")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	got = decodeBody(t, resp)
	if got["persona"] != "You are a study coach." {
		t.Errorf("Expected saved persona, got %v", got["persona"])
	}
	if got["num_rounds"] != float64(4) {
		t.Errorf("Expected num_rounds 4, got %v", got["num_rounds"])
	}
}

func TestPutPromptValidation(t *testing.T) {
	srv, _ := newAdminServer(t)

	resp := putJSON(t, srv.URL+"/api/prompt", map[string]interface{}{
		"persona":    "x",
		"num_rounds": 0,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 for num_rounds 0, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = putJSON(t, srv.URL+"/api/prompt", map[string]interface{}{
		"persona":        "x",
		"num_activities": -1,
		"num_rounds":     3,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 for negative num_activities, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestActivityCatalogEndpoints(t *testing.T) {
	srv, _ := newAdminServer(t)

	resp := postJSON(t, http.DefaultClient, srv.URL+"/api/activities", map[string]interface{}{
		"content":  "gratitude journal",
		"priority": 2,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}
	created := decodeBody(t, resp)
	id := created["id"].(float64)
	if id == 0 {
		t.Fatal("Expected a non-zero activity id")
	}

	resp, err := http.Get(srv.URL + "/api/activities")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	got := decodeBody(t, resp)
	activities := got["activities"].([]interface{})
	if len(activities) != 1 {
		t.Fatalf("Expected 1 activity, got %d", len(activities))
	}

	resp = putJSON(t, fmt.Sprintf("%s/api/activities/%d", srv.URL, int64(id)), map[string]interface{}{
		"content":  "gratitude letter",
		"priority": 1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/activities/%d", srv.URL, int64(id)), nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 on delete, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	// Gone now.
	resp = putJSON(t, fmt.Sprintf("%s/api/activities/%d", srv.URL, int64(id)), map[string]interface{}{
		"content": "x",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 on missing activity, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestActivityValidation(t *testing.T) {
	srv, _ := newAdminServer(t)

	resp := postJSON(t, http.DefaultClient, srv.URL+"/api/activities", map[string]interface{}{
		"content": "   ",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 for blank content, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = putJSON(t, srv.URL+"/api/activities/not-a-number", map[string]interface{}{
		"content": "x",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad id, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}
