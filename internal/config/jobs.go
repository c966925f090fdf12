package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// JobParameters are the pipeline parameters a scheduled job runs with.
type JobParameters struct {
	Query     string `yaml:"query"`
	Location  string `yaml:"location"`
	StartPage int    `yaml:"start_page"`
	NumPages  int    `yaml:"num_pages"`
}

// JobDefinition is one declarative scheduler entry. Schedule accepts any
// robfig/cron spec, including "@every 1h" interval strings.
type JobDefinition struct {
	Name       string        `yaml:"name"`
	Phase      string        `yaml:"phase"` // full_pipeline | collection | maintenance
	Schedule   string        `yaml:"schedule"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries"`
	Parameters JobParameters `yaml:"parameters"`
}

// UnmarshalYAML parses Timeout from a duration string ("30m", "2h"), which
// yaml.v3 does not decode into time.Duration on its own.
func (j *JobDefinition) UnmarshalYAML(value *yaml.Node) error {
	type plain struct {
		Name       string        `yaml:"name"`
		Phase      string        `yaml:"phase"`
		Schedule   string        `yaml:"schedule"`
		Timeout    string        `yaml:"timeout"`
		Retries    int           `yaml:"retries"`
		Parameters JobParameters `yaml:"parameters"`
	}
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	j.Name = p.Name
	j.Phase = p.Phase
	j.Schedule = p.Schedule
	j.Retries = p.Retries
	j.Parameters = p.Parameters
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return fmt.Errorf("job %q: invalid timeout %q: %w", p.Name, p.Timeout, err)
		}
		j.Timeout = d
	}
	return nil
}

type jobsDocument struct {
	Jobs []JobDefinition `yaml:"jobs"`
}

// LoadJobs reads scheduler job definitions from a YAML file. An empty path
// returns the built-in defaults.
func LoadJobs(path string) ([]JobDefinition, error) {
	if path == "" {
		return DefaultJobs(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file %q: %w", path, err)
	}

	var doc jobsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse jobs file %q: %w", path, err)
	}
	if len(doc.Jobs) == 0 {
		return nil, fmt.Errorf("jobs file %q defines no jobs", path)
	}

	seen := make(map[string]bool, len(doc.Jobs))
	for i, j := range doc.Jobs {
		if j.Name == "" {
			return nil, fmt.Errorf("jobs[%d]: name is required", i)
		}
		if seen[j.Name] {
			return nil, fmt.Errorf("duplicate job name %q", j.Name)
		}
		seen[j.Name] = true
		if j.Schedule == "" {
			return nil, fmt.Errorf("job %q: schedule is required", j.Name)
		}
	}
	return doc.Jobs, nil
}

// DefaultJobs is the fallback schedule used when no jobs file is configured.
func DefaultJobs() []JobDefinition {
	return []JobDefinition{
		{
			Name:     "daily-full-run",
			Phase:    "full_pipeline",
			Schedule: "0 2 * * *",
			Timeout:  2 * time.Hour,
			Parameters: JobParameters{
				Query:     "software engineer",
				StartPage: 1,
				NumPages:  5,
			},
		},
		{
			Name:     "hourly-incremental",
			Phase:    "collection",
			Schedule: "@hourly",
			Timeout:  30 * time.Minute,
			Parameters: JobParameters{
				Query:     "software engineer",
				StartPage: 1,
				NumPages:  1,
			},
		},
		{
			Name:     "weekly-maintenance",
			Phase:    "maintenance",
			Schedule: "0 3 * * 0",
			Timeout:  time.Hour,
		},
	}
}
