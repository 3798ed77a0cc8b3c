// Package tailoring asks the completion service for the change commands that
// adapt a résumé to one job posting.
package tailoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocv/internal/changes"
	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/observability"
	"github.com/yoockh/yoocv/internal/providers/llm"
	"github.com/yoockh/yoocv/internal/utils"
)

const maxJobDescriptionChars = 6000

const plannerSystemPrompt = `You tailor résumés to job postings without inventing experience.
Respond with JSON only: {"changes": [ ... ]} where every change is
{"section": "...", "action": "add|update|delete|enhance", "target": "index or index/field", "field": "...", "newValue": ..., "reason": "..."}.
Sections: contactInfo, summary, experience, education, skills, certifications, projects, languages.
Indices are zero-based and refer to the résumé as it is after the previous changes.
Prefer enhance on existing entries. Never change names, employers, titles, dates or credentials.`

type Job struct {
	Title       string
	Company     string
	Description string
	Keywords    []string
}

func JobFromPosting(p *models.JobPosting) Job {
	return Job{
		Title:       p.Title,
		Company:     p.Company,
		Description: p.Description,
		Keywords:    p.Keywords,
	}
}

type Planner struct {
	llm llm.Provider
	log *logrus.Logger
}

func NewPlanner(p llm.Provider, log *logrus.Logger) *Planner {
	return &Planner{llm: p, log: log}
}

// Plan returns the proposed commands. Unrecoverable model output yields an
// empty plan, not an error.
func (p *Planner) Plan(ctx context.Context, rec *models.StructuredRecord, job Job) ([]changes.Command, error) {
	const op = "Planner.Plan"

	if rec == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "record is required", nil)
	}

	prompt, err := buildPlanPrompt(rec, job)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to build prompt", err)
	}

	raw, err := p.llm.Complete(ctx, llm.Request{
		System:      plannerSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   4096,
		Temperature: 0.3,
	})
	if err != nil {
		code := utils.CodeOf(err)
		if code == utils.CodeInternal {
			code = utils.CodeUnavailable
		}
		return nil, utils.E(code, op, "tailoring plan failed", err)
	}

	cmds, strategy := changes.FromModelOutput(raw)
	observability.ObserveRecovery("changes", strategy.String())
	if len(cmds) == 0 {
		p.log.WithFields(logrus.Fields{"op": op, "strategy": strategy.String()}).Warn("no tailoring changes recovered")
	}
	return cmds, nil
}

func buildPlanPrompt(rec *models.StructuredRecord, job Job) (string, error) {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}

	desc := strings.TrimSpace(job.Description)
	if r := []rune(desc); len(r) > maxJobDescriptionChars {
		desc = string(r[:maxJobDescriptionChars])
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "JOB TITLE: %s\n", job.Title)
	if job.Company != "" {
		fmt.Fprintf(&sb, "COMPANY: %s\n", job.Company)
	}
	if len(job.Keywords) > 0 {
		fmt.Fprintf(&sb, "KEYWORDS: %s\n", strings.Join(job.Keywords, ", "))
	}
	fmt.Fprintf(&sb, "JOB DESCRIPTION:\n%s\n\nRÉSUMÉ JSON:\n%s\n", desc, b)
	return sb.String(), nil
}
