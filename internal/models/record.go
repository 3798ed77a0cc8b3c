package models

// StructuredRecord is the normalized résumé extracted from a document.
// Dates are kept in their canonical string form produced by utils.NormalizeDate.
type StructuredRecord struct {
	ContactInfo    ContactInfo     `bson:"contact_info" json:"contactInfo"`
	Summary        string          `bson:"summary" json:"summary"`
	Experience     []Experience    `bson:"experience" json:"experience" validate:"dive"`
	Education      []Education     `bson:"education" json:"education" validate:"dive"`
	Skills         []Skill         `bson:"skills" json:"skills" validate:"dive"`
	Certifications []Certification `bson:"certifications" json:"certifications" validate:"dive"`
	Languages      []Language      `bson:"languages" json:"languages" validate:"dive"`
	Projects       []Project       `bson:"projects" json:"projects" validate:"dive"`
}

type ContactInfo struct {
	Name     string `bson:"name" json:"name"`
	Email    string `bson:"email" json:"email"`
	Phone    string `bson:"phone" json:"phone"`
	Location string `bson:"location" json:"location"`
	LinkedIn string `bson:"linkedin" json:"linkedin"`
	Website  string `bson:"website" json:"website"`
}

type Experience struct {
	Company     string   `bson:"company" json:"company" validate:"required_without=Title"`
	Title       string   `bson:"title" json:"title" validate:"required_without=Company"`
	Location    string   `bson:"location" json:"location"`
	StartDate   string   `bson:"start_date" json:"startDate"`
	EndDate     string   `bson:"end_date" json:"endDate"`
	Description string   `bson:"description" json:"description"`
	Highlights  []string `bson:"highlights" json:"highlights"`
	Skills      []string `bson:"skills" json:"skills"`
}

type Education struct {
	Institution string   `bson:"institution" json:"institution" validate:"required_without=Degree"`
	Degree      string   `bson:"degree" json:"degree" validate:"required_without=Institution"`
	Field       string   `bson:"field" json:"field"`
	Location    string   `bson:"location" json:"location"`
	StartDate   string   `bson:"start_date" json:"startDate"`
	EndDate     string   `bson:"end_date" json:"endDate"`
	GPA         string   `bson:"gpa" json:"gpa"`
	Description string   `bson:"description" json:"description"`
	Highlights  []string `bson:"highlights" json:"highlights"`
}

type Skill struct {
	Name        string `bson:"name" json:"name" validate:"required"`
	Category    string `bson:"category" json:"category"`
	Proficiency string `bson:"proficiency" json:"proficiency"`
	Years       *int   `bson:"years,omitempty" json:"years,omitempty"`
}

type Certification struct {
	Name         string `bson:"name" json:"name" validate:"required"`
	Issuer       string `bson:"issuer" json:"issuer"`
	IssueDate    string `bson:"issue_date" json:"issueDate"`
	ExpiryDate   string `bson:"expiry_date" json:"expiryDate"`
	CredentialID string `bson:"credential_id" json:"credentialId"`
}

type Language struct {
	Name        string `bson:"name" json:"name" validate:"required"`
	Proficiency string `bson:"proficiency" json:"proficiency"`
}

type Project struct {
	Name         string   `bson:"name" json:"name" validate:"required"`
	Description  string   `bson:"description" json:"description"`
	URL          string   `bson:"url" json:"url"`
	StartDate    string   `bson:"start_date" json:"startDate"`
	EndDate      string   `bson:"end_date" json:"endDate"`
	Highlights   []string `bson:"highlights" json:"highlights"`
	Technologies []string `bson:"technologies" json:"technologies"`
}

// Clone returns a deep copy; edits on the copy never reach the receiver.
func (r *StructuredRecord) Clone() *StructuredRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Experience != nil {
		out.Experience = make([]Experience, len(r.Experience))
		for i, e := range r.Experience {
			e.Highlights = cloneStrings(e.Highlights)
			e.Skills = cloneStrings(e.Skills)
			out.Experience[i] = e
		}
	}
	if r.Education != nil {
		out.Education = make([]Education, len(r.Education))
		for i, e := range r.Education {
			e.Highlights = cloneStrings(e.Highlights)
			out.Education[i] = e
		}
	}
	if r.Skills != nil {
		out.Skills = make([]Skill, len(r.Skills))
		for i, s := range r.Skills {
			if s.Years != nil {
				y := *s.Years
				s.Years = &y
			}
			out.Skills[i] = s
		}
	}
	out.Certifications = cloneSlice(r.Certifications)
	out.Languages = cloneSlice(r.Languages)
	if r.Projects != nil {
		out.Projects = make([]Project, len(r.Projects))
		for i, p := range r.Projects {
			p.Highlights = cloneStrings(p.Highlights)
			p.Technologies = cloneStrings(p.Technologies)
			out.Projects[i] = p
		}
	}
	return &out
}

func cloneStrings(in []string) []string { return cloneSlice(in) }

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}
