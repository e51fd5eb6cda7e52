package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDocAIServer(t *testing.T, pollsUntilDone int32, final docaiJobResp) *httptest.Server {
	t.Helper()
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/v1/parse", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(docaiSubmitResp{JobID: "job-1"})
	})
	mux.HandleFunc("/v1/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < pollsUntilDone {
			json.NewEncoder(w).Encode(docaiJobResp{Status: "processing"})
			return
		}
		json.NewEncoder(w).Encode(final)
	})
	return httptest.NewServer(mux)
}

func TestDocAI_SubmitPollFlatten(t *testing.T) {
	srv := newDocAIServer(t, 3, docaiJobResp{
		Status:     "done",
		Text:       "Experian Credit Report",
		Confidence: 0.93,
		Fields: []docaiField{
			{Name: "Name", Value: "John Smith"},
			{Name: "SSN", Value: "XXX-XX-1234"},
		},
		Tables: []docaiTable{
			{Rows: [][]string{{"Capital One", "$1,250.00", "Open"}}},
		},
	})
	defer srv.Close()

	backend := NewDocAI(DocAIConfig{
		BaseURL:         srv.URL,
		ClientID:        "id",
		ClientSecret:    "secret",
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 10,
	})

	res, err := backend.Extract(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.True(t, res.StructuredData)
	assert.Equal(t, 0.93, res.Confidence)
	assert.Contains(t, res.Text, "Experian Credit Report")
	assert.Contains(t, res.Text, "FIELD Name: John Smith")
	assert.Contains(t, res.Text, "TABLE Capital One | $1,250.00 | Open")
}

func TestDocAI_JobFailure(t *testing.T) {
	srv := newDocAIServer(t, 1, docaiJobResp{Status: "failed", Error: "unreadable scan"})
	defer srv.Close()

	backend := NewDocAI(DocAIConfig{
		BaseURL:         srv.URL,
		ClientID:        "id",
		ClientSecret:    "secret",
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 10,
	})

	_, err := backend.Extract(context.Background(), []byte("%PDF-1.4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreadable scan")
}

func TestDocAI_PollingIsBounded(t *testing.T) {
	// Job never finishes; the backend must abandon it, not poll forever.
	srv := newDocAIServer(t, 1<<30, docaiJobResp{})
	defer srv.Close()

	backend := NewDocAI(DocAIConfig{
		BaseURL:         srv.URL,
		ClientID:        "id",
		ClientSecret:    "secret",
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 3,
	})

	_, err := backend.Extract(context.Background(), []byte("%PDF-1.4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "abandoning")
}

func TestDocAI_PollingStopsOnCancel(t *testing.T) {
	srv := newDocAIServer(t, 1<<30, docaiJobResp{})
	defer srv.Close()

	backend := NewDocAI(DocAIConfig{
		BaseURL:         srv.URL,
		ClientID:        "id",
		ClientSecret:    "secret",
		PollInterval:    50 * time.Millisecond,
		PollMaxAttempts: 1000,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := backend.Extract(ctx, []byte("%PDF-1.4"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
}
