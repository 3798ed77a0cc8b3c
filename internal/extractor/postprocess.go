package extractor

import (
	"regexp"
	"strings"

	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/utils"
)

// A numbered marker needs whitespace after it so "1.5M users" stays prose.
var bulletRe = regexp.MustCompile(`^\s*(?:[-•*▪◦●‣→>]\s*|\d{1,2}[.)]\s+)(\S.*)$`)

// PostProcess canonicalizes dates, derives highlights from bulleted
// descriptions and drops entries with no identifying field.
func PostProcess(rec *models.StructuredRecord) {
	if rec == nil {
		return
	}
	rec.Summary = strings.TrimSpace(rec.Summary)

	exp := rec.Experience[:0]
	for _, e := range rec.Experience {
		e.Company, e.Title = strings.TrimSpace(e.Company), strings.TrimSpace(e.Title)
		if e.Company == "" && e.Title == "" {
			continue
		}
		e.StartDate, e.EndDate = utils.CanonicalDate(e.StartDate), utils.CanonicalDate(e.EndDate)
		if len(e.Highlights) == 0 {
			e.Description, e.Highlights = SplitHighlights(e.Description)
		}
		e.Highlights = compact(e.Highlights)
		e.Skills = compact(e.Skills)
		exp = append(exp, e)
	}
	rec.Experience = exp

	edu := rec.Education[:0]
	for _, e := range rec.Education {
		e.Institution, e.Degree = strings.TrimSpace(e.Institution), strings.TrimSpace(e.Degree)
		if e.Institution == "" && e.Degree == "" {
			continue
		}
		e.StartDate, e.EndDate = utils.CanonicalDate(e.StartDate), utils.CanonicalDate(e.EndDate)
		if len(e.Highlights) == 0 {
			e.Description, e.Highlights = SplitHighlights(e.Description)
		}
		e.Highlights = compact(e.Highlights)
		edu = append(edu, e)
	}
	rec.Education = edu

	skills := rec.Skills[:0]
	for _, s := range rec.Skills {
		if s.Name = strings.TrimSpace(s.Name); s.Name != "" {
			skills = append(skills, s)
		}
	}
	rec.Skills = skills

	certs := rec.Certifications[:0]
	for _, c := range rec.Certifications {
		if c.Name = strings.TrimSpace(c.Name); c.Name == "" {
			continue
		}
		c.IssueDate, c.ExpiryDate = utils.CanonicalDate(c.IssueDate), utils.CanonicalDate(c.ExpiryDate)
		certs = append(certs, c)
	}
	rec.Certifications = certs

	langs := rec.Languages[:0]
	for _, l := range rec.Languages {
		if l.Name = strings.TrimSpace(l.Name); l.Name != "" {
			langs = append(langs, l)
		}
	}
	rec.Languages = langs

	projects := rec.Projects[:0]
	for _, p := range rec.Projects {
		if p.Name = strings.TrimSpace(p.Name); p.Name == "" {
			continue
		}
		p.StartDate, p.EndDate = utils.CanonicalDate(p.StartDate), utils.CanonicalDate(p.EndDate)
		p.Highlights = compact(p.Highlights)
		p.Technologies = compact(p.Technologies)
		projects = append(projects, p)
	}
	rec.Projects = projects
}

// SplitHighlights moves bulleted lines of a description into highlights with
// the bullet glyph removed. Non-bulleted lines stay in the description.
func SplitHighlights(description string) (string, []string) {
	if strings.TrimSpace(description) == "" {
		return "", nil
	}
	var rest, highlights []string
	for _, line := range strings.Split(description, "\n") {
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			highlights = append(highlights, strings.TrimSpace(m[1]))
			continue
		}
		if t := strings.TrimSpace(line); t != "" {
			rest = append(rest, t)
		}
	}
	if len(highlights) == 0 {
		return strings.TrimSpace(description), nil
	}
	return strings.Join(rest, "\n"), highlights
}

func compact(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
