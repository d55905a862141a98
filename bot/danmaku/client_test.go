package danmaku

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := New(server.URL, "test-key", 5*time.Second, nil)
	client.httpClient.RetryMax = 0
	return client, server
}

func TestSearchSendsAPIKey(t *testing.T) {
	var gotKey, gotKeyword string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api_key")
		gotKeyword = r.URL.Query().Get("keyword")
		json.NewEncoder(w).Encode(SearchResponse{
			SearchID: "s-1",
			Results: []SearchItem{
				{Title: "某科学的超电磁炮", Type: "tv_series", Provider: "bili", Year: 2009, EpisodeCount: 24},
			},
		})
	}))

	resp, err := client.Search(context.Background(), "超电磁炮")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if gotKey != "test-key" {
		t.Errorf("expected api_key query param, got %q", gotKey)
	}
	if gotKeyword != "超电磁炮" {
		t.Errorf("unexpected keyword: %q", gotKeyword)
	}
	if resp.SearchID != "s-1" || len(resp.Results) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestRefreshSourceSendsBody(t *testing.T) {
	var body map[string]int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/refresh" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.RefreshSource(context.Background(), 42); err != nil {
		t.Fatalf("refresh source: %v", err)
	}
	if body["sourceId"] != 42 {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestBadStatusReturnsTypedError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	_, err := client.Library(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", apiErr.Status)
	}
	if !errors.Is(err, ErrBadStatus) {
		t.Error("expected ErrBadStatus class")
	}
}

func TestBadStatusSurvivesRetryExhaustion(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "服务维护中", http.StatusServiceUnavailable)
	}))
	client.httpClient.RetryMax = 1
	client.httpClient.RetryWaitMin = 5 * time.Millisecond
	client.httpClient.RetryWaitMax = 10 * time.Millisecond

	_, err := client.Tokens(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", apiErr.Status)
	}
	if !strings.Contains(apiErr.Body, "服务维护中") {
		t.Errorf("expected server message in body, got %q", apiErr.Body)
	}
	if !errors.Is(err, ErrBadStatus) {
		t.Errorf("expected ErrBadStatus class, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected one retry before giving up, got %d calls", calls.Load())
	}
}

func TestTimeoutReturnsTypedError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	client.httpClient.HTTPClient.Timeout = 50 * time.Millisecond

	err := client.RefreshEpisode(context.Background(), 7)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout class, got %v", err)
	}
}

func TestLibraryCacheCollapsesAndExpires(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode([]LibraryItem{
			{AnimeID: 1, Title: "某科学的超电磁炮", Season: 1, EpisodeCount: 24},
		})
	}))

	cache := NewLibraryCache(client, 100*time.Millisecond, nil)

	for i := 0; i < 3; i++ {
		items, err := cache.Get(context.Background())
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("unexpected items: %v", items)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls.Load())
	}

	time.Sleep(150 * time.Millisecond)
	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected refresh after TTL, got %d calls", calls.Load())
	}
}

func TestLibraryCacheSearchKeyword(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]LibraryItem{
			{AnimeID: 1, Title: "葬送的芙莉莲"},
			{AnimeID: 2, Title: "某科学的超电磁炮 S02"},
		})
	}))

	cache := NewLibraryCache(client, time.Hour, nil)
	matches, err := cache.SearchKeyword(context.Background(), "芙莉莲")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].AnimeID != 1 {
		t.Errorf("unexpected matches: %v", matches)
	}
}
