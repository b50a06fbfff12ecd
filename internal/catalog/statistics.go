package catalog

import (
	"sort"

	"github.com/spigell/job-recommender/internal/extract"
)

const DefaultTopSkills = 10

// SkillCount is how many jobs mention a skill.
type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}

// Statistics is a read-only aggregate over a catalog.
type Statistics struct {
	Version                string         `json:"catalog_version"`
	TotalJobs              int            `json:"total_jobs"`
	UniqueCompanies        int            `json:"unique_companies"`
	UniqueLocations        int            `json:"unique_locations"`
	UniqueContractTypes    int            `json:"unique_contract_types"`
	AvgSkillsPerJob        float64        `json:"avg_skills_per_job"`
	TopSkills              []SkillCount   `json:"top_skills"`
	ExperienceDistribution map[string]int `json:"experience_level_distribution"`
}

// Stats computes Statistics with the topN most frequent skills, ties broken by name.
func (c *Catalog) Stats(topN int) Statistics {
	if topN <= 0 {
		topN = DefaultTopSkills
	}

	companies := map[string]struct{}{}
	locations := map[string]struct{}{}
	contracts := map[string]struct{}{}
	skills := map[string]int{}
	levels := map[string]int{}
	totalSkills := 0

	c.Each(func(job *Job) bool {
		if job.Company != "" {
			companies[job.Company] = struct{}{}
		}
		locations[job.Location] = struct{}{}
		contracts[job.ContractType] = struct{}{}
		for _, s := range job.Skills {
			skills[s]++
		}
		totalSkills += len(job.Skills)

		level := job.ExperienceLevel
		if level == "" {
			level = extract.LevelUnknown
		}
		levels[string(level)]++
		return true
	})

	top := make([]SkillCount, 0, len(skills))
	for s, n := range skills {
		top = append(top, SkillCount{Skill: s, Count: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Skill < top[j].Skill
	})
	if len(top) > topN {
		top = top[:topN]
	}

	stats := Statistics{
		Version:                c.Version(),
		TotalJobs:              c.Len(),
		UniqueCompanies:        len(companies),
		UniqueLocations:        len(locations),
		UniqueContractTypes:    len(contracts),
		TopSkills:              top,
		ExperienceDistribution: levels,
	}
	if c.Len() > 0 {
		stats.AvgSkillsPerJob = float64(totalSkills) / float64(c.Len())
	}

	return stats
}
