package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DocAI is the primary cloud OCR backend. The vendor parses documents
// asynchronously: submit returns a job handle which is then polled with a
// fixed interval and a bounded attempt count.
type DocAI struct {
	baseURL         string
	clientID        string
	clientSecret    string
	httpClient      *http.Client
	tokens          *TokenCache
	pollInterval    time.Duration
	pollMaxAttempts int
}

type DocAIConfig struct {
	BaseURL         string
	ClientID        string
	ClientSecret    string
	PollInterval    time.Duration
	PollMaxAttempts int
}

func NewDocAI(cfg DocAIConfig) *DocAI {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 60
	}
	return &DocAI{
		baseURL:         strings.TrimSuffix(cfg.BaseURL, "/"),
		clientID:        cfg.ClientID,
		clientSecret:    cfg.ClientSecret,
		httpClient:      &http.Client{Timeout: 60 * time.Second},
		tokens:          NewTokenCache(),
		pollInterval:    cfg.PollInterval,
		pollMaxAttempts: cfg.PollMaxAttempts,
	}
}

func (d *DocAI) Name() string { return "docai" }

type docaiSubmitResp struct {
	JobID string `json:"job_id"`
}

type docaiField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type docaiTable struct {
	Rows [][]string `json:"rows"`
}

type docaiJobResp struct {
	Status     string       `json:"status"` // processing, done, failed
	Error      string       `json:"error,omitempty"`
	Text       string       `json:"text,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
	Fields     []docaiField `json:"fields,omitempty"`
	Tables     []docaiTable `json:"tables,omitempty"`
}

func (d *DocAI) Extract(ctx context.Context, pdf []byte) (*Result, error) {
	token, err := d.tokens.Token(ctx, d.fetchToken)
	if err != nil {
		return nil, fmt.Errorf("docai auth: %w", err)
	}

	jobID, err := d.submit(ctx, token, pdf)
	if err != nil {
		return nil, err
	}

	job, err := d.awaitJob(ctx, token, jobID)
	if err != nil {
		return nil, err
	}

	return flattenDocAI(job), nil
}

func (d *DocAI) submit(ctx context.Context, token string, pdf []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", d.baseURL+"/v1/parse", bytes.NewReader(pdf))
	if err != nil {
		return "", fmt.Errorf("docai submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("docai submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("docai submit failed (%d): %s", resp.StatusCode, string(body))
	}

	var submit docaiSubmitResp
	if err := json.NewDecoder(resp.Body).Decode(&submit); err != nil {
		return "", fmt.Errorf("docai submit decode: %w", err)
	}
	if submit.JobID == "" {
		return "", fmt.Errorf("docai submit returned no job id")
	}
	return submit.JobID, nil
}

// awaitJob polls the job with a fixed interval up to pollMaxAttempts, then
// abandons it. The cancellation signal is checked before every poll so a
// deleted report stops the loop promptly.
func (d *DocAI) awaitJob(ctx context.Context, token, jobID string) (*docaiJobResp, error) {
	for attempt := 0; attempt < d.pollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.pollInterval):
		}

		job, err := d.pollJob(ctx, token, jobID)
		if err != nil {
			return nil, err
		}

		switch job.Status {
		case "done":
			return job, nil
		case "failed":
			return nil, fmt.Errorf("docai job failed: %s", job.Error)
		}
	}
	return nil, fmt.Errorf("docai job %s not done after %d polls, abandoning", jobID, d.pollMaxAttempts)
}

func (d *DocAI) pollJob(ctx context.Context, token, jobID string) (*docaiJobResp, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", d.baseURL+"/v1/jobs/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("docai poll request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docai poll: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("docai poll failed (%d)", resp.StatusCode)
	}

	var job docaiJobResp
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("docai poll decode: %w", err)
	}
	return &job, nil
}

func (d *DocAI) fetchToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {d.clientID},
		"client_secret": {d.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", 0, fmt.Errorf("token fetch failed (%d)", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", 0, fmt.Errorf("token decode: %w", err)
	}
	if tok.AccessToken == "" {
		return "", 0, fmt.Errorf("token response missing access_token")
	}

	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return tok.AccessToken, ttl, nil
}

// flattenDocAI folds the vendor's form fields and tables into the same
// line-oriented text the entity extractor consumes. Labels keep key-value
// and tabular data distinguishable from free text.
func flattenDocAI(job *docaiJobResp) *Result {
	var buf strings.Builder
	buf.WriteString(job.Text)

	structured := len(job.Fields) > 0 || len(job.Tables) > 0
	if structured && job.Text != "" {
		buf.WriteString("\n")
	}

	for _, f := range job.Fields {
		if f.Name == "" || f.Value == "" {
			continue
		}
		buf.WriteString("FIELD ")
		buf.WriteString(f.Name)
		buf.WriteString(": ")
		buf.WriteString(f.Value)
		buf.WriteString("\n")
	}

	for _, t := range job.Tables {
		for _, row := range t.Rows {
			buf.WriteString("TABLE ")
			buf.WriteString(strings.Join(row, " | "))
			buf.WriteString("\n")
		}
	}

	confidence := job.Confidence
	if confidence <= 0 {
		confidence = heuristicConfidence(buf.String())
	}

	return &Result{
		Text:           buf.String(),
		Confidence:     confidence,
		StructuredData: structured,
	}
}
