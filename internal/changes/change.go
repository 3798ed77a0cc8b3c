package changes

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/yoockh/yoocv/internal/extractor"
	"github.com/yoockh/yoocv/internal/models"
)

// Change is a validated, typed command. The set of implementations is closed.
type Change interface {
	Section() Section
	Action() Action
	applyTo(rec *models.StructuredRecord) error
}

var (
	errOutOfRange = errors.New("target index out of range")
	errNoTarget   = errors.New("target index is required")
	errBadValue   = errors.New("unsupported value for this command")
)

// Parse validates a raw command and builds the variant for its section.
func Parse(cmd Command) (Change, error) {
	if err := getValidator().Struct(cmd); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}
	pos, err := parseTarget(cmd.Target, cmd.Field)
	if err != nil {
		return nil, err
	}
	action := Action(cmd.Action)

	switch Section(cmd.Section) {
	case SectionContactInfo:
		return &ContactChange{action: action, field: pos.field, value: cmd.NewValue}, nil
	case SectionSummary:
		return &SummaryChange{action: action, value: cmd.NewValue}, nil
	case SectionExperience:
		return &EntryChange[models.Experience]{
			section: SectionExperience, action: action, pos: pos, value: cmd.NewValue,
			list:      func(r *models.StructuredRecord) *[]models.Experience { return &r.Experience },
			textField: "description",
		}, nil
	case SectionEducation:
		return &EntryChange[models.Education]{
			section: SectionEducation, action: action, pos: pos, value: cmd.NewValue,
			list:      func(r *models.StructuredRecord) *[]models.Education { return &r.Education },
			textField: "description",
		}, nil
	case SectionSkills:
		return &EntryChange[models.Skill]{
			section: SectionSkills, action: action, pos: pos, value: cmd.NewValue,
			list:     func(r *models.StructuredRecord) *[]models.Skill { return &r.Skills },
			fromText: func(s string) models.Skill { return models.Skill{Name: s} },
		}, nil
	case SectionCertifications:
		return &EntryChange[models.Certification]{
			section: SectionCertifications, action: action, pos: pos, value: cmd.NewValue,
			list:     func(r *models.StructuredRecord) *[]models.Certification { return &r.Certifications },
			fromText: func(s string) models.Certification { return models.Certification{Name: s} },
		}, nil
	case SectionProjects:
		return &EntryChange[models.Project]{
			section: SectionProjects, action: action, pos: pos, value: cmd.NewValue,
			list:      func(r *models.StructuredRecord) *[]models.Project { return &r.Projects },
			fromText:  func(s string) models.Project { return models.Project{Name: s} },
			textField: "description",
		}, nil
	case SectionLanguages:
		return &EntryChange[models.Language]{
			section: SectionLanguages, action: action, pos: pos, value: cmd.NewValue,
			list:     func(r *models.StructuredRecord) *[]models.Language { return &r.Languages },
			fromText: func(s string) models.Language { return models.Language{Name: s} },
		}, nil
	}
	return nil, fmt.Errorf("unknown section %q", cmd.Section)
}

// ContactChange edits fields of the contact block.
type ContactChange struct {
	action Action
	field  string
	value  any
}

func (c *ContactChange) Section() Section { return SectionContactInfo }
func (c *ContactChange) Action() Action   { return c.action }

func (c *ContactChange) applyTo(rec *models.StructuredRecord) error {
	ci := rec.ContactInfo
	switch {
	case c.action == ActionDelete && c.field == "":
		ci = models.ContactInfo{}
	case c.action == ActionDelete:
		if err := clearField(&ci, c.field); err != nil {
			return err
		}
	case c.field != "":
		s, ok := textValue(c.value)
		if !ok {
			return errBadValue
		}
		if err := extractor.DecodeInto(map[string]any{c.field: s}, &ci, true); err != nil {
			return err
		}
	default:
		m, ok := c.value.(map[string]any)
		if !ok {
			return errBadValue
		}
		if err := extractor.DecodeInto(m, &ci, true); err != nil {
			return err
		}
	}
	rec.ContactInfo = ci
	return nil
}

// SummaryChange edits the free-text summary.
type SummaryChange struct {
	action Action
	value  any
}

func (c *SummaryChange) Section() Section { return SectionSummary }
func (c *SummaryChange) Action() Action   { return c.action }

func (c *SummaryChange) applyTo(rec *models.StructuredRecord) error {
	if c.action == ActionDelete {
		rec.Summary = ""
		return nil
	}
	s, ok := textValue(c.value)
	if !ok || s == "" {
		return errBadValue
	}
	if c.action == ActionAdd && rec.Summary != "" {
		rec.Summary = rec.Summary + " " + s
		return nil
	}
	rec.Summary = s
	return nil
}

// EntryChange edits one of the list sections.
type EntryChange[T any] struct {
	section   Section
	action    Action
	pos       position
	value     any
	list      func(*models.StructuredRecord) *[]T
	fromText  func(string) T
	textField string
}

func (c *EntryChange[T]) Section() Section { return c.section }
func (c *EntryChange[T]) Action() Action   { return c.action }

func (c *EntryChange[T]) applyTo(rec *models.StructuredRecord) error {
	list := c.list(rec)

	if c.action == ActionAdd && (c.pos.index < 0 || c.pos.field == "") {
		items, err := c.decodeEntries(c.value)
		if err != nil {
			return err
		}
		for i := range items {
			if err := getValidator().Struct(items[i]); err != nil {
				return err
			}
		}
		*list = append(*list, items...)
		return nil
	}

	if c.pos.index < 0 {
		return errNoTarget
	}
	if c.pos.index >= len(*list) {
		return errOutOfRange
	}
	entry := (*list)[c.pos.index]

	switch c.action {
	case ActionDelete:
		if c.pos.field == "" {
			*list = append((*list)[:c.pos.index:c.pos.index], (*list)[c.pos.index+1:]...)
			return nil
		}
		if err := clearField(&entry, c.pos.field); err != nil {
			return err
		}
	case ActionAdd:
		if err := appendToField(&entry, c.pos.field, c.value); err != nil {
			return err
		}
	case ActionUpdate:
		if c.pos.field != "" {
			if err := extractor.DecodeInto(map[string]any{c.pos.field: c.value}, &entry, true); err != nil {
				return err
			}
			break
		}
		m, ok := c.value.(map[string]any)
		if !ok {
			return errBadValue
		}
		var fresh T
		if err := extractor.DecodeInto(m, &fresh, false); err != nil {
			return err
		}
		entry = fresh
	case ActionEnhance:
		if err := c.enhance(&entry); err != nil {
			return err
		}
	}

	if err := getValidator().Struct(entry); err != nil {
		return err
	}
	(*list)[c.pos.index] = entry
	return nil
}

// enhance tolerates loosely shaped values: lists go to highlights, text goes
// to the section's free-text field and objects are merged.
func (c *EntryChange[T]) enhance(entry *T) error {
	field := c.pos.field
	if field == "" {
		switch v := c.value.(type) {
		case map[string]any:
			return extractor.DecodeInto(v, entry, false)
		case []any:
			field = "highlights"
		case string:
			field = c.textField
		}
	}
	if field == "" {
		return errBadValue
	}
	return extractor.DecodeInto(map[string]any{field: c.value}, entry, true)
}

func (c *EntryChange[T]) decodeEntries(v any) ([]T, error) {
	switch val := v.(type) {
	case map[string]any:
		var t T
		if err := extractor.DecodeInto(val, &t, false); err != nil {
			return nil, err
		}
		return []T{t}, nil
	case string:
		if c.fromText == nil || strings.TrimSpace(val) == "" {
			return nil, errBadValue
		}
		return []T{c.fromText(strings.TrimSpace(val))}, nil
	case []any:
		out := make([]T, 0, len(val))
		for _, item := range val {
			items, err := c.decodeEntries(item)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		}
		if len(out) == 0 {
			return nil, errBadValue
		}
		return out, nil
	}
	return nil, errBadValue
}

func textValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), true
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			s, ok := p.(string)
			if !ok {
				return "", false
			}
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " "), true
	}
	return "", false
}

// fieldByJSON finds the struct field whose json tag matches name.
func fieldByJSON(ptr any, name string) (reflect.Value, error) {
	v := reflect.ValueOf(ptr).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if strings.EqualFold(tag, name) {
			return v.Field(i), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("unknown field %q", name)
}

func clearField(ptr any, name string) error {
	f, err := fieldByJSON(ptr, name)
	if err != nil {
		return err
	}
	f.Set(reflect.Zero(f.Type()))
	return nil
}

func appendToField(ptr any, name string, value any) error {
	f, err := fieldByJSON(ptr, name)
	if err != nil {
		return err
	}
	if f.Kind() != reflect.Slice || f.Type().Elem().Kind() != reflect.String {
		return fmt.Errorf("field %q is not a list", name)
	}

	var items []string
	switch v := value.(type) {
	case string:
		items = []string{v}
	case []any:
		for _, it := range v {
			s, ok := it.(string)
			if !ok {
				return errBadValue
			}
			items = append(items, s)
		}
	default:
		return errBadValue
	}

	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			f.Set(reflect.Append(f, reflect.ValueOf(s)))
		}
	}
	return nil
}
