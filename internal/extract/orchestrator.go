package extract

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/creditpipe/creditpipe/internal/config"
	"github.com/creditpipe/creditpipe/internal/ocr"
	"github.com/creditpipe/creditpipe/internal/validate"
)

// Attempt records one backend try, accepted or not. Failed attempts keep
// a zero confidence and carry the reason; they are persisted alongside
// winners so a report's history shows every method that was tried.
type Attempt struct {
	Method         string
	Text           string
	Confidence     float64
	CharacterCount int
	WordCount      int
	HasStructured  bool
	Duration       time.Duration
	Err            string
	ContentReject  bool
	Accepted       bool
}

// Outcome is the full provenance of one orchestrated extraction.
type Outcome struct {
	Attempts []Attempt
	Winner   int // index into Attempts, -1 when every backend failed
}

func (o *Outcome) Exhausted() bool { return o.Winner < 0 }

// FailureReason summarizes an exhausted chain, one clause per backend.
// Content rejections and transport failures read differently: the former
// means the file is wrong, the latter means retry later.
func (o *Outcome) FailureReason() string {
	parts := make([]string, 0, len(o.Attempts))
	anyContent := false
	for _, a := range o.Attempts {
		parts = append(parts, a.Method+": "+a.Err)
		if a.ContentReject {
			anyContent = true
		}
	}
	msg := "all extraction backends failed (" + strings.Join(parts, "; ") + ")"
	if anyContent {
		return msg + "; the file does not look like a readable credit report"
	}
	return msg + "; extraction services were unavailable, retry later"
}

// Orchestrator runs backends in configured order and stops at the first
// whose output passes content validation.
type Orchestrator struct {
	backends       []ocr.Backend
	attemptTimeout time.Duration
	overallTimeout time.Duration
}

func NewOrchestrator(backends []ocr.Backend, cfg config.ExtractionConfig) *Orchestrator {
	return &Orchestrator{
		backends:       backends,
		attemptTimeout: cfg.AttemptTimeout,
		overallTimeout: cfg.OverallTimeout,
	}
}

// Run never fabricates output: when the chain is exhausted the Outcome
// carries only failure records and Winner stays -1.
func (o *Orchestrator) Run(ctx context.Context, pdf []byte) *Outcome {
	if o.overallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.overallTimeout)
		defer cancel()
	}

	out := &Outcome{Winner: -1}
	for _, b := range o.backends {
		if err := ctx.Err(); err != nil {
			out.Attempts = append(out.Attempts, Attempt{Method: b.Name(), Err: "skipped: " + err.Error()})
			continue
		}
		att := o.attempt(ctx, b, pdf)
		out.Attempts = append(out.Attempts, att)
		if att.Accepted {
			out.Winner = len(out.Attempts) - 1
			slog.Info("extraction accepted",
				"backend", att.Method,
				"confidence", att.Confidence,
				"chars", att.CharacterCount)
			break
		}
		slog.Warn("extraction backend failed, falling back",
			"backend", b.Name(),
			"reason", att.Err)
	}
	return out
}

func (o *Orchestrator) attempt(ctx context.Context, b ocr.Backend, pdf []byte) Attempt {
	attemptCtx := ctx
	if o.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, o.attemptTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := b.Extract(attemptCtx, pdf)
	att := Attempt{Method: b.Name(), Duration: time.Since(start)}
	if err != nil {
		att.Err = err.Error()
		return att
	}
	if strings.TrimSpace(res.Text) == "" {
		att.Err = "empty extraction payload"
		return att
	}

	att.Text = res.Text
	att.CharacterCount = len(res.Text)
	att.WordCount = len(strings.Fields(res.Text))
	att.HasStructured = res.StructuredData

	if v := validate.CreditReport(res.Text); !v.Accepted {
		att.Err = "rejected: " + v.Reason
		att.ContentReject = true
		return att
	}

	att.Confidence = res.Confidence
	att.Accepted = true
	return att
}
