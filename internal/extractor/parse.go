package extractor

import (
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/yoockh/yoocv/internal/models"
)

const ParsingErrorName = "Parsing Error"

var recordKeys = []string{
	"contactInfo", "summary", "experience", "education",
	"skills", "certifications", "languages", "projects",
}

// Parse turns raw model output into a record using the full recovery chain.
// A nil record means every strategy failed.
func Parse(raw string) (*models.StructuredRecord, Strategy) {
	if m, s := RecoverObject(raw); m != nil {
		if rec := decodeRecord(unwrap(m)); rec != nil {
			return rec, s
		}
	}
	if rec := scrapeFields(raw); rec != nil {
		return rec, StrategyFieldScrape
	}
	return nil, StrategyNone
}

// ParsingErrorRecord is the sentinel stored when nothing could be recovered.
func ParsingErrorRecord(reason string) *models.StructuredRecord {
	summary := "We could not read the structure of this résumé automatically. Please re-upload the file or edit the details manually."
	if reason = strings.TrimSpace(reason); reason != "" {
		summary += " (" + reason + ")"
	}
	return &models.StructuredRecord{
		ContactInfo: models.ContactInfo{Name: ParsingErrorName},
		Summary:     summary,
	}
}

func IsParsingError(rec *models.StructuredRecord) bool {
	return rec != nil && rec.ContactInfo.Name == ParsingErrorName
}

// unwrap handles answers nested under a single envelope key like {"resume": {...}}.
func unwrap(m map[string]any) map[string]any {
	for _, k := range recordKeys {
		if _, ok := m[k]; ok {
			return m
		}
	}
	if len(m) == 1 {
		for _, v := range m {
			if inner, ok := v.(map[string]any); ok {
				return inner
			}
		}
	}
	return m
}

// decodeRecord decodes section by section so one malformed section does not
// discard the rest.
func decodeRecord(m map[string]any) *models.StructuredRecord {
	var rec models.StructuredRecord
	decoded := 0
	for _, k := range recordKeys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		section := map[string]any{k: v}
		var probe models.StructuredRecord
		if err := DecodeInto(section, &probe, false); err != nil {
			continue
		}
		if err := DecodeInto(section, &rec, false); err == nil {
			decoded++
		}
	}
	if decoded == 0 {
		return nil
	}
	return &rec
}

// DecodeInto maps loosely typed JSON values onto out using the json tags.
// strict rejects keys that do not map onto a field. Lists and maps in the
// input replace the existing ones instead of merging by index.
func DecodeInto(in any, out any, strict bool) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      strict,
		ZeroFields:       true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
