package profile

import (
	"reflect"
	"testing"
)

func TestBuild(t *testing.T) {
	t.Parallel()

	b := NewBuilder(nil)

	tests := []struct {
		name       string
		profile    string
		document   string
		keywords   []string
		wantText   string
		wantSkills []string
	}{
		{
			name:       "profile only",
			profile:    "Data analyst with SQL",
			wantText:   "Data analyst with SQL",
			wantSkills: []string{"SQL"},
		},
		{
			name:       "keywords are repeated",
			profile:    "Data engineer",
			keywords:   []string{"Spark", " ", "Airflow"},
			wantText:   "Data engineer Spark Airflow Spark Airflow",
			wantSkills: []string{"Airflow", "Spark"},
		},
		{
			name:       "document text is cleaned",
			profile:    "ML engineer",
			document:   "• Python\n• PyTorch .",
			wantText:   "ML engineer Python PyTorch.",
			wantSkills: []string{"Machine Learning", "PyTorch", "Python"},
		},
		{
			name:       "keywords only",
			keywords:   []string{"Tableau"},
			wantText:   "Tableau Tableau",
			wantSkills: []string{"Tableau"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := b.Build(tt.profile, tt.document, tt.keywords)
			if got.Text != tt.wantText {
				t.Fatalf("Text = %q, want %q", got.Text, tt.wantText)
			}
			if !reflect.DeepEqual(got.Skills, tt.wantSkills) {
				t.Fatalf("Skills = %v, want %v", got.Skills, tt.wantSkills)
			}
		})
	}
}
