package extract

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSkills(t *testing.T) {
	t.Parallel()

	ex := NewDefault()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "canonical names",
			text: "Experienced in Python, SQL and machine learning with PyTorch",
			want: []string{"Machine Learning", "PyTorch", "Python", "SQL"},
		},
		{
			name: "aliases are reported under canonical name",
			text: "We use k8s and GCP, plus LLMs",
			want: []string{"GCP", "Kubernetes", "Large Language Models"},
		},
		{
			name: "repeated mentions appear once",
			text: "python python PYTHON",
			want: []string{"Python"},
		},
		{
			name: "whole words only",
			text: "pythonic sqlite3",
			want: []string{},
		},
		{
			name: "empty",
			text: "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ex.Skills(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Skills(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestSkillsIdempotent(t *testing.T) {
	t.Parallel()

	ex := NewDefault()
	text := "Senior Data Engineer: Spark, Airflow, dbt, AWS (S3, Glue), Docker and Kubernetes."

	first := ex.Skills(text)
	second := ex.Skills(text)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("extraction is not idempotent: %v vs %v", first, second)
	}
	if len(first) == 0 {
		t.Fatalf("expected skills to be found")
	}
}

func TestExperienceLevel(t *testing.T) {
	t.Parallel()

	ex := NewDefault()

	tests := []struct {
		text string
		want Level
	}{
		{"Junior data analyst", LevelJunior},
		{"Senior engineer, junior profiles welcome", LevelJunior},
		{"Intermediate Python developer", LevelMid},
		{"Lead Data Scientist", LevelSenior},
		{"Team lead for the platform", LevelSenior},
		{"Head of Data", LevelManager},
		{"Data analyst", LevelUnknown},
		{"", LevelUnknown},
	}

	for _, tt := range tests {
		if got := ex.ExperienceLevel(tt.text); got != tt.want {
			t.Errorf("ExperienceLevel(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestExperienceLevelCustomRules(t *testing.T) {
	t.Parallel()

	ex := New(DefaultVocabulary(), WithLevelRules([]LevelRule{
		{Level: LevelManager, Keywords: []string{"Team Lead"}},
		{Level: LevelSenior, Keywords: []string{"lead"}},
	}))

	if got := ex.ExperienceLevel("Team lead for the platform"); got != LevelManager {
		t.Fatalf("expected manager, got %s", got)
	}
}

func TestYearsOfExperience(t *testing.T) {
	t.Parallel()

	ex := NewDefault()

	tests := []struct {
		text string
		want int
	}{
		{"at least 3 years of experience", 3},
		{"5+ years in data engineering", 5},
		{"3-5 years", 3},
		{"2 – 4 ans d'expérience", 2},
		{"10 yrs", 10},
		{"first 2 years, then 7 years", 2},
		{"no figure here", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := ex.YearsOfExperience(tt.text); got != tt.want {
			t.Errorf("YearsOfExperience(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestYearsOfExperienceAfterCleaning(t *testing.T) {
	t.Parallel()

	ex := NewDefault()

	tests := []struct {
		text string
		want int
	}{
		{"Requires 3–5 years of experience", 3},
		{"<li>2—4 yrs</li>", 2},
		{"6 – 8 ans d'expérience", 6},
	}

	for _, tt := range tests {
		cleaned := CleanText(tt.text)
		if got := ex.YearsOfExperience(cleaned); got != tt.want {
			t.Errorf("YearsOfExperience(CleanText(%q)) = %d, want %d (cleaned %q)", tt.text, got, tt.want, cleaned)
		}
	}
}

func TestExtract(t *testing.T) {
	t.Parallel()

	got := NewDefault().Extract("Senior ML engineer, 5+ years with TensorFlow")

	if got.ExperienceLevel != LevelSenior {
		t.Fatalf("unexpected level %s", got.ExperienceLevel)
	}
	if got.YearsExperience != 5 {
		t.Fatalf("unexpected years %d", got.YearsExperience)
	}
	want := []string{"Machine Learning", "TensorFlow"}
	if !reflect.DeepEqual(got.Skills, want) {
		t.Fatalf("unexpected skills %v", got.Skills)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	if got := ParseLevel(" Senior "); got != LevelSenior {
		t.Fatalf("expected senior, got %s", got)
	}
	if got := ParseLevel("principal"); got != LevelUnknown {
		t.Fatalf("expected unknown, got %s", got)
	}
	if _, ok := LevelUnknown.Ordinal(); ok {
		t.Fatalf("unknown level must not have an ordinal")
	}
	if ord, ok := LevelManager.Ordinal(); !ok || ord != 3 {
		t.Fatalf("unexpected manager ordinal %d %v", ord, ok)
	}
}

func TestVocabularyCanonicalIncludesAliasTargets(t *testing.T) {
	t.Parallel()

	vocab := Vocabulary{
		Skills:  []string{"Python", "SQL", "Python"},
		Aliases: map[string]string{"bi": "Business Intelligence", "py": "Python"},
	}

	want := []string{"Python", "SQL", "Business Intelligence"}
	if got := vocab.Canonical(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Canonical() = %v, want %v", got, want)
	}
}

func TestLoadVocabulary(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vocabulary.yaml")
	content := "skills:\n  - Go\n  - gRPC\naliases:\n  golang: Go\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write vocabulary: %v", err)
	}

	vocab, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("LoadVocabulary: %v", err)
	}

	ex := New(vocab)
	got := ex.Skills("Golang services over gRPC")
	want := []string{"Go", "gRPC"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Skills = %v, want %v", got, want)
	}
}

func TestLoadVocabularyMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
