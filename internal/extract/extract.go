// Package extract turns raw uploaded file bytes into cleaned text plus
// per-unit text and metadata. Several backends are tried in fidelity order;
// the first whose output scores above the quality threshold wins.
package extract

import (
	"fmt"
	"strings"

	"policychat/internal/pkg/logger"
)

// QualityThreshold is the minimum quality score at which a backend's
// result is accepted without consulting the remaining backends.
const QualityThreshold = 0.40

// Result is the outcome of a successful extraction.
type Result struct {
	Text     string            // full cleaned text
	Units    []string          // cleaned per-unit text (pages, paragph blocks, ...)
	Metadata map[string]string // backend-specific metadata (title, author, page_count, ...)
	Backend  string            // name of the backend that produced the result
	Quality  float64           // quality score of the accepted result
}

// Backend is one extraction strategy. Extract returns an error when the
// input is not in the backend's format or cannot be decoded.
type Backend interface {
	Name() string
	Extract(data []byte) (*Result, error)
}

// ExtractionError reports that no backend could produce usable text.
type ExtractionError struct {
	Reason string
	Cause  error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// Cascade tries its backends from highest to lowest typical fidelity.
type Cascade struct {
	backends []Backend
}

// NewCascade builds a cascade over the given backends, in order.
// With no arguments the default chain is used: PDF, DOCX, plain text.
func NewCascade(backends ...Backend) *Cascade {
	if len(backends) == 0 {
		backends = []Backend{NewPDFBackend(), NewDOCXBackend(), NewPlainTextBackend()}
	}
	return &Cascade{backends: backends}
}

// Extract runs the cascade. The first backend whose cleaned output reaches
// QualityThreshold short-circuits; otherwise the best non-empty result is
// returned. Only when every backend errors or yields empty text does
// Extract fail.
func (c *Cascade) Extract(data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, &ExtractionError{Reason: "input is empty"}
	}

	log := logger.For("extract")
	var best *Result
	var lastErr error

	for _, backend := range c.backends {
		res, err := backend.Extract(data)
		if err != nil {
			log.WithField("backend", backend.Name()).Debugf("backend failed: %v", err)
			lastErr = err
			continue
		}

		finalize(res)
		if strings.TrimSpace(res.Text) == "" {
			continue
		}

		res.Quality = QualityScore(res.Text, len(res.Units))
		if res.Quality >= QualityThreshold {
			log.WithField("backend", backend.Name()).
				Debugf("accepted result, quality %.2f", res.Quality)
			return res, nil
		}
		if best == nil || res.Quality > best.Quality {
			best = res
		}
	}

	if best != nil {
		log.WithField("backend", best.Backend).
			Debugf("no backend reached threshold, keeping best result (%.2f)", best.Quality)
		return best, nil
	}
	if lastErr != nil {
		return nil, &ExtractionError{Reason: "all backends exhausted", Cause: lastErr}
	}
	return nil, &ExtractionError{Reason: "no extractable text"}
}

// finalize cleans each unit, drops repeated page headers/footers, and
// rebuilds the full text from the surviving units.
func finalize(res *Result) {
	cleaned := make([]string, 0, len(res.Units))
	for _, u := range res.Units {
		if c := CleanText(u); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	cleaned = StripRepeatedEdgeLines(cleaned)
	res.Units = cleaned
	res.Text = strings.TrimSpace(strings.Join(cleaned, "\n\n"))
	if res.Metadata == nil {
		res.Metadata = map[string]string{}
	}
}
