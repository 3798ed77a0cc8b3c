package extractor

import (
	"fmt"

	"github.com/yoockh/yoocv/internal/models"
)

const extractionSystemPrompt = `You convert résumé text into JSON. Respond with a single JSON object and nothing else. Do not wrap it in markdown.`

const recordSchema = `{
  "contactInfo": {"name": "", "email": "", "phone": "", "location": "", "linkedin": "", "website": ""},
  "summary": "",
  "experience": [{"company": "", "title": "", "location": "", "startDate": "", "endDate": "", "description": "", "highlights": [""], "skills": [""]}],
  "education": [{"institution": "", "degree": "", "field": "", "location": "", "startDate": "", "endDate": "", "gpa": "", "description": "", "highlights": [""]}],
  "skills": [{"name": "", "category": "", "proficiency": "", "years": 0}],
  "certifications": [{"name": "", "issuer": "", "issueDate": "", "expiryDate": "", "credentialId": ""}],
  "languages": [{"name": "", "proficiency": ""}],
  "projects": [{"name": "", "description": "", "url": "", "startDate": "", "endDate": "", "highlights": [""], "technologies": [""]}]
}`

func buildExtractionPrompt(text string, fileType models.FileType) string {
	return fmt.Sprintf(`Extract the résumé below (source format: %s) into this JSON shape:
%s

Rules:
- Copy dates exactly as written; use "Present" for ongoing roles.
- Put each bullet point of a role into "highlights".
- Leave a field empty when the résumé does not state it. Never invent data.

Résumé:
"""
%s
"""`, fileType, recordSchema, text)
}
