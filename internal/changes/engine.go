package changes

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocv/internal/extractor"
	"github.com/yoockh/yoocv/internal/models"
)

type Skipped struct {
	Index   int     `json:"index"`
	Command Command `json:"command"`
	Reason  string  `json:"reason"`
}

// Report summarizes one Apply call.
type Report struct {
	Applied int       `json:"applied"`
	Skipped []Skipped `json:"skipped"`
}

type Engine struct {
	log *logrus.Logger
}

func NewEngine(log *logrus.Logger) *Engine {
	return &Engine{log: log}
}

// Apply runs commands in order against a copy of rec. Each command is atomic:
// an invalid one is skipped and recorded, and the rest still apply. The input
// record is never modified.
func (e *Engine) Apply(rec *models.StructuredRecord, cmds []Command) (*models.StructuredRecord, Report) {
	out := rec.Clone()
	if out == nil {
		out = &models.StructuredRecord{}
	}
	report := Report{Skipped: []Skipped{}}

	for i, cmd := range cmds {
		ch, err := Parse(cmd)
		if err == nil {
			work := out.Clone()
			if err = ch.applyTo(work); err == nil {
				out = work
				report.Applied++
				continue
			}
		}
		report.Skipped = append(report.Skipped, Skipped{Index: i, Command: cmd, Reason: err.Error()})
		if e.log != nil {
			e.log.WithFields(logrus.Fields{
				"index":   i,
				"section": cmd.Section,
				"action":  cmd.Action,
				"target":  string(cmd.Target),
			}).WithError(err).Warn("change command skipped")
		}
	}
	return out, report
}

// Validate checks a record against the entry constraints of every section.
func Validate(rec *models.StructuredRecord) error {
	if rec == nil {
		return fmt.Errorf("record is nil")
	}
	return getValidator().Struct(rec)
}

// FromModelOutput recovers a command list from raw model output. Both a bare
// array and an object with a "changes" array are accepted. Elements that do
// not decode are dropped.
func FromModelOutput(raw string) ([]Command, extractor.Strategy) {
	items, strategy := extractor.RecoverArray(raw)
	if items == nil {
		m, s := extractor.RecoverObject(raw)
		if list, ok := m["changes"].([]any); ok {
			items, strategy = list, s
		}
	}
	if items == nil {
		return nil, extractor.StrategyNone
	}

	cmds := make([]Command, 0, len(items))
	for _, it := range items {
		b, err := json.Marshal(it)
		if err != nil {
			continue
		}
		var c Command
		if err := json.Unmarshal(b, &c); err != nil {
			continue
		}
		cmds = append(cmds, c)
	}
	return cmds, strategy
}
