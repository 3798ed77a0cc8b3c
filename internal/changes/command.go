package changes

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

type Section string

const (
	SectionContactInfo    Section = "contactInfo"
	SectionSummary        Section = "summary"
	SectionExperience     Section = "experience"
	SectionEducation      Section = "education"
	SectionSkills         Section = "skills"
	SectionCertifications Section = "certifications"
	SectionProjects       Section = "projects"
	SectionLanguages      Section = "languages"
)

type Action string

const (
	ActionAdd     Action = "add"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionEnhance Action = "enhance"
)

// Target is the string-encoded position of a command: "", "2" or "2/highlights".
// Numbers are accepted on the wire as well.
type Target string

func (t *Target) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Target(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("target must be a string or number: %w", err)
	}
	*t = Target(n.String())
	return nil
}

// Command is a change as emitted by the model or submitted by a user.
type Command struct {
	Section  string `json:"section" validate:"required,oneof=contactInfo summary experience education skills certifications projects languages"`
	Action   string `json:"action" validate:"required,oneof=add update delete enhance"`
	Target   Target `json:"target,omitempty"`
	Field    string `json:"field,omitempty" validate:"omitempty,max=64"`
	NewValue any    `json:"newValue,omitempty"`
	Reason   string `json:"reason,omitempty" validate:"max=2000"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// position is the decoded target: index < 0 means "no entry".
type position struct {
	index int
	field string
}

func parseTarget(t Target, field string) (position, error) {
	p := position{index: -1, field: strings.TrimSpace(field)}
	s := strings.TrimSpace(string(t))
	if s == "" {
		return p, nil
	}
	idx, sub, _ := strings.Cut(s, "/")
	n, err := strconv.Atoi(strings.TrimSpace(idx))
	if err != nil || n < 0 {
		return p, fmt.Errorf("malformed target %q", s)
	}
	p.index = n
	if sub = strings.TrimSpace(sub); sub != "" && p.field == "" {
		p.field = sub
	}
	return p, nil
}
