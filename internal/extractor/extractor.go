package extractor

import (
	"context"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/observability"
	"github.com/yoockh/yoocv/internal/providers/llm"
	"github.com/yoockh/yoocv/internal/utils"
)

const defaultMaxInputChars = 30000

type Result struct {
	Record   *models.StructuredRecord
	Strategy Strategy
}

// Extractor turns document text into a StructuredRecord via the completion service.
type Extractor struct {
	llm           llm.Provider
	log           *logrus.Logger
	maxInputChars int
}

func New(p llm.Provider, log *logrus.Logger) *Extractor {
	return &Extractor{llm: p, log: log, maxInputChars: defaultMaxInputChars}
}

// Extract never fails on malformed model output; the sentinel record is
// returned instead. Only completion-service failures surface as errors.
func (x *Extractor) Extract(ctx context.Context, text string, fileType models.FileType) (*Result, error) {
	const op = "Extractor.Extract"

	text = CleanText(text)
	if text == "" {
		return &Result{Record: ParsingErrorRecord("no readable text in document")}, nil
	}
	if len(text) > x.maxInputChars {
		text = truncateRunes(text, x.maxInputChars)
	}

	raw, err := x.llm.Complete(ctx, llm.Request{
		System:      extractionSystemPrompt,
		Prompt:      buildExtractionPrompt(text, fileType),
		MaxTokens:   8192,
		Temperature: 0.1,
	})
	if err != nil {
		code := utils.CodeOf(err)
		if code == utils.CodeInternal {
			code = utils.CodeUnavailable
		}
		return nil, utils.E(code, op, "structured extraction failed", err)
	}

	rec, strategy := Parse(raw)
	observability.ObserveRecovery("record", strategy.String())
	if rec == nil {
		x.log.WithFields(logrus.Fields{
			"op":       op,
			"response": truncateRunes(raw, 200),
		}).Warn("model output could not be recovered")
		return &Result{Record: ParsingErrorRecord("model output was not valid JSON")}, nil
	}
	if strategy != StrategyDirect {
		x.log.WithFields(logrus.Fields{"op": op, "strategy": strategy.String()}).Info("recovered malformed model output")
	}

	PostProcess(rec)
	return &Result{Record: rec, Strategy: strategy}, nil
}

// CleanText drops invalid UTF-8 and control characters and collapses runs of
// blank lines.
func CleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return -1
		case unicode.IsControl(r), r == unicode.ReplacementChar:
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, l := range lines {
		l = strings.TrimRightFunc(l, unicode.IsSpace)
		if l == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
