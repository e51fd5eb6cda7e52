package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/creditpipe/creditpipe/internal/config"
)

// Result is the raw output of one extraction backend.
type Result struct {
	Text string
	// Confidence is backend-reported when the vendor provides one,
	// otherwise heuristically computed. Always in [0, 1].
	Confidence float64
	// StructuredData is true when form-field or table output was
	// flattened into Text.
	StructuredData bool
}

// Backend turns PDF bytes into text. Implementations may call out to a
// vendor service or scan the file locally; either way they must respect ctx.
type Backend interface {
	Name() string
	Extract(ctx context.Context, pdf []byte) (*Result, error)
}

// Build constructs the backend fallback chain from config, in the configured
// order. Backends without credentials are skipped; pdftext needs none and is
// always available.
func Build(cfg config.OCRConfig, ext config.ExtractionConfig) ([]Backend, error) {
	var backends []Backend
	for _, name := range strings.Split(cfg.Order, ",") {
		switch strings.TrimSpace(name) {
		case "docai":
			if cfg.DocAIBaseURL == "" {
				continue
			}
			backends = append(backends, NewDocAI(DocAIConfig{
				BaseURL:         cfg.DocAIBaseURL,
				ClientID:        cfg.DocAIClientID,
				ClientSecret:    cfg.DocAIClientSecret,
				PollInterval:    ext.PollInterval,
				PollMaxAttempts: ext.PollMaxAttempts,
			}))
		case "textify":
			if cfg.TextifyBaseURL == "" {
				continue
			}
			backends = append(backends, NewTextify(cfg.TextifyBaseURL, cfg.TextifyAPIKey))
		case "llmscan":
			if cfg.OpenAIKey == "" {
				continue
			}
			backends = append(backends, NewLLMScan(cfg.OpenAIKey, cfg.OpenAIModel))
		case "pdftext":
			backends = append(backends, NewPDFText())
		case "":
		default:
			return nil, fmt.Errorf("unknown OCR backend %q", name)
		}
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("no OCR backends configured (order: %q)", cfg.Order)
	}
	return backends, nil
}
