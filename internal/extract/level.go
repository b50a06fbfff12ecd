package extract

import "strings"

// Level is a seniority classification.
type Level string

const (
	LevelUnknown Level = "unknown"
	LevelJunior  Level = "junior"
	LevelMid     Level = "mid"
	LevelSenior  Level = "senior"
	LevelManager Level = "manager"
)

var levelOrdinals = map[Level]int{
	LevelJunior:  0,
	LevelMid:     1,
	LevelSenior:  2,
	LevelManager: 3,
}

// ParseLevel maps free-form input onto a Level. Anything unrecognized is LevelUnknown.
func ParseLevel(s string) Level {
	level := Level(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelOrdinals[level]; ok {
		return level
	}
	return LevelUnknown
}

// Ordinal returns the rank of a known level. ok is false for LevelUnknown.
func (l Level) Ordinal() (int, bool) {
	ord, ok := levelOrdinals[l]
	return ord, ok
}

func (l Level) String() string {
	if l == "" {
		return string(LevelUnknown)
	}
	return string(l)
}

// LevelRule classifies text under Level when any keyword is a substring of the lowercased text.
type LevelRule struct {
	Level    Level
	Keywords []string
}

func (r LevelRule) matches(lowered string) bool {
	for _, keyword := range r.Keywords {
		if keyword != "" && strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// DefaultLevelRules returns the built-in rules in priority order. The first
// matching rule wins, so a text mentioning both "junior" and "senior" is junior.
func DefaultLevelRules() []LevelRule {
	return []LevelRule{
		{Level: LevelJunior, Keywords: []string{"junior", "entry level", "entry-level", "débutant", "graduate", "0-2 ans", "0-2 years", "fresher"}},
		{Level: LevelMid, Keywords: []string{"mid-level", "intermediate", "confirmé", "2-5 ans", "3-5 years", "2-5 years", "experienced"}},
		{Level: LevelSenior, Keywords: []string{"senior", "expert", "lead", "principal", "staff", "5+ ans", "5+ years", "7+ years", "specialist"}},
		{Level: LevelManager, Keywords: []string{"manager", "head of", "director", "vp", "chief", "responsable", "team lead", "tech lead"}},
	}
}
