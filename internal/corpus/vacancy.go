package corpus

import (
	"strings"
)

// Vacancy is the subset of a HeadHunter vacancy used to build a Record.
type Vacancy struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Area struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"area,omitempty"`
	Schedule struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"schedule,omitempty"`
	Employment struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"employment,omitempty"`
	Employer struct {
		ID           string `json:"id,omitempty"`
		Name         string `json:"name,omitempty"`
		AlternateURL string `json:"alternate_url,omitempty"`
	} `json:"employer,omitempty"`
	Snippet struct {
		Requirement    string `json:"requirement,omitempty"`
		Responsibility string `json:"responsibility,omitempty"`
	} `json:"snippet,omitempty"`
	ProfessionalRoles []struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"professional_roles,omitempty"`
	KeySkills []struct {
		Name string `json:"name,omitempty"`
	} `json:"key_skills,omitempty"`
	Description  string `json:"description,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	PublishedAt  string `json:"published_at,omitempty"`
	Archived     bool   `json:"archived,omitempty"`
}

// Record converts the vacancy. Search results carry only a snippet, which is
// used as the description when the full text was not fetched.
func (v *Vacancy) Record() Record {
	description := v.Description
	if description == "" {
		parts := make([]string, 0, 2)
		for _, p := range []string{v.Snippet.Responsibility, v.Snippet.Requirement} {
			if strings.TrimSpace(p) != "" {
				parts = append(parts, p)
			}
		}
		description = strings.Join(parts, " ")
	}
	if len(v.KeySkills) > 0 {
		names := make([]string, 0, len(v.KeySkills))
		for _, s := range v.KeySkills {
			names = append(names, s.Name)
		}
		description += " Key skills: " + strings.Join(names, ", ") + "."
	}

	category := ""
	if len(v.ProfessionalRoles) > 0 {
		category = v.ProfessionalRoles[0].Name
	}

	rec := Record{
		ID:           v.ID,
		Title:        v.Name,
		Description:  description,
		Company:      v.Employer.Name,
		CompanyURL:   v.Employer.AlternateURL,
		Location:     v.Area.Name,
		ContractType: v.Employment.Name,
		WorkType:     v.Schedule.Name,
		PostedTime:   v.CreatedAt,
		PublishedAt:  v.PublishedAt,
		URL:          v.AlternateURL,
		Category:     category,
	}
	rec.trim()

	return rec
}
