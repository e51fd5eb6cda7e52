package extract

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creditpipe/creditpipe/internal/config"
	"github.com/creditpipe/creditpipe/internal/ocr"
)

const validReportText = `Experian Credit Report
Name: John Smith
SSN: XXX-XX-1234
Date of Birth: 04/02/1985
Creditor: Capital One
Account Number: XXXX9921
Current Balance: $1,250.00
Credit Limit: $5,000.00
Payment history: no late payment on record
Inquiry: Chase Bank 01/15/2024 Hard`

type fakeBackend struct {
	name  string
	res   *ocr.Result
	err   error
	calls int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Extract(ctx context.Context, pdf []byte) (*ocr.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

func testConfig() config.ExtractionConfig {
	return config.ExtractionConfig{
		AttemptTimeout: time.Second,
		OverallTimeout: 5 * time.Second,
	}
}

func TestOrchestrator_FirstSuccessWins(t *testing.T) {
	first := &fakeBackend{name: "docai", res: &ocr.Result{Text: validReportText, Confidence: 0.9}}
	second := &fakeBackend{name: "textify", res: &ocr.Result{Text: validReportText, Confidence: 0.8}}

	o := NewOrchestrator([]ocr.Backend{first, second}, testConfig())
	out := o.Run(context.Background(), []byte("%PDF-1.4"))

	require.False(t, out.Exhausted())
	assert.Equal(t, 0, out.Winner)
	assert.Equal(t, "docai", out.Attempts[out.Winner].Method)
	assert.Equal(t, 0, second.calls, "later backends must not run after a success")
}

func TestOrchestrator_FallsBackOnError(t *testing.T) {
	first := &fakeBackend{name: "docai", err: fmt.Errorf("vendor timeout")}
	second := &fakeBackend{name: "textify", res: &ocr.Result{Text: validReportText, Confidence: 0.8}}

	o := NewOrchestrator([]ocr.Backend{first, second}, testConfig())
	out := o.Run(context.Background(), []byte("%PDF-1.4"))

	require.Len(t, out.Attempts, 2)
	assert.Equal(t, 1, out.Winner)

	failed := out.Attempts[0]
	assert.False(t, failed.Accepted)
	assert.Equal(t, 0.0, failed.Confidence, "failed attempt records zero confidence")
	assert.Contains(t, failed.Err, "vendor timeout")

	winner := out.Attempts[1]
	assert.True(t, winner.Accepted)
	assert.Equal(t, 0.8, winner.Confidence)
	assert.Equal(t, len(validReportText), winner.CharacterCount)
}

func TestOrchestrator_RejectsOffDomainOutput(t *testing.T) {
	garbage := &fakeBackend{name: "docai", res: &ocr.Result{Text: "lorem ipsum dolor"}}

	o := NewOrchestrator([]ocr.Backend{garbage}, testConfig())
	out := o.Run(context.Background(), []byte("%PDF-1.4"))

	require.True(t, out.Exhausted())
	assert.True(t, out.Attempts[0].ContentReject)
	assert.Contains(t, out.FailureReason(), "does not look like a readable credit report")
}

func TestOrchestrator_ExhaustedTransportFailures(t *testing.T) {
	first := &fakeBackend{name: "docai", err: fmt.Errorf("connection refused")}
	second := &fakeBackend{name: "textify", err: fmt.Errorf("503 from vendor")}

	o := NewOrchestrator([]ocr.Backend{first, second}, testConfig())
	out := o.Run(context.Background(), []byte("%PDF-1.4"))

	require.True(t, out.Exhausted())
	require.Len(t, out.Attempts, 2)

	reason := out.FailureReason()
	assert.Contains(t, reason, "docai: connection refused")
	assert.Contains(t, reason, "textify: 503 from vendor")
	assert.Contains(t, reason, "retry later")
}

func TestOrchestrator_EmptyTextIsFailure(t *testing.T) {
	empty := &fakeBackend{name: "pdftext", res: &ocr.Result{Text: "   \n  "}}

	o := NewOrchestrator([]ocr.Backend{empty}, testConfig())
	out := o.Run(context.Background(), []byte("%PDF-1.4"))

	require.True(t, out.Exhausted())
	assert.Contains(t, out.Attempts[0].Err, "empty extraction payload")
}

func TestOrchestrator_CancelledContextSkipsBackends(t *testing.T) {
	backend := &fakeBackend{name: "docai", res: &ocr.Result{Text: validReportText, Confidence: 0.9}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator([]ocr.Backend{backend}, testConfig())
	out := o.Run(ctx, []byte("%PDF-1.4"))

	require.True(t, out.Exhausted())
	assert.Equal(t, 0, backend.calls)
	assert.Contains(t, out.Attempts[0].Err, "skipped")
}
