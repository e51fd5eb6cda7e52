package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Textify is the secondary cloud OCR backend. Unlike docai it is
// synchronous: one request, one rendered-text response.
type Textify struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewTextify(baseURL, apiKey string) *Textify {
	return &Textify{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

func (t *Textify) Name() string { return "textify" }

type textifyReq struct {
	PDFBase64 string `json:"pdf_base64"`
	Language  string `json:"language"`
}

type textifyResp struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Pages      int     `json:"pages"`
}

func (t *Textify) Extract(ctx context.Context, pdf []byte) (*Result, error) {
	body, _ := json.Marshal(textifyReq{
		PDFBase64: base64.StdEncoding.EncodeToString(pdf),
		Language:  "eng",
	})

	req, err := http.NewRequestWithContext(ctx, "POST", t.baseURL+"/v1/ocr", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("textify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("textify ocr: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("textify ocr failed (%d): %s", resp.StatusCode, string(msg))
	}

	var out textifyResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("textify decode: %w", err)
	}

	confidence := out.Confidence
	if confidence <= 0 {
		confidence = heuristicConfidence(out.Text)
	}

	return &Result{
		Text:       out.Text,
		Confidence: confidence,
	}, nil
}
