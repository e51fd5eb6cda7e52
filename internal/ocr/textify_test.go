package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextify_Extract(t *testing.T) {
	pdfBytes := []byte("%PDF-1.4 fake")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ocr", r.URL.Path)
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))

		var req textifyReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		decoded, err := base64.StdEncoding.DecodeString(req.PDFBase64)
		require.NoError(t, err)
		assert.Equal(t, pdfBytes, decoded)

		json.NewEncoder(w).Encode(textifyResp{Text: "Credit Report", Confidence: 0.81, Pages: 2})
	}))
	defer srv.Close()

	backend := NewTextify(srv.URL, "key-123")
	res, err := backend.Extract(context.Background(), pdfBytes)
	require.NoError(t, err)
	assert.Equal(t, "Credit Report", res.Text)
	assert.Equal(t, 0.81, res.Confidence)
	assert.False(t, res.StructuredData)
}

func TestTextify_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	backend := NewTextify(srv.URL, "")
	_, err := backend.Extract(context.Background(), []byte("%PDF-1.4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestTextify_HeuristicConfidenceFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Vendor omits confidence; backend must score heuristically.
		json.NewEncoder(w).Encode(textifyResp{Text: "Experian account balance $1,250.00 on 01/15/2024"})
	}))
	defer srv.Close()

	backend := NewTextify(srv.URL, "")
	res, err := backend.Extract(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Greater(t, res.Confidence, 0.2)
	assert.LessOrEqual(t, res.Confidence, 0.95)
}
