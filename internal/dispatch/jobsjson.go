package dispatch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/ensembleeval/internal/entity"
)

// JobsFile is the name of the job list written into every run path.
const JobsFile = "jobs.json"

const defaultUmask = "0022"

type jobList struct {
	JobList []entity.ExtJob `json:"jobList"`
	Umask   string          `json:"umask"`
}

// WriteJobsJSON writes the executable specs of every job of r, in run
// order, to jobs.json in runPath.
func WriteJobsJSON(runPath string, r *entity.Realization) error {
	list := jobList{Umask: defaultUmask, JobList: []entity.ExtJob{}}
	for _, stage := range r.Stages() {
		for _, step := range stage.Steps() {
			for _, job := range step.Jobs() {
				list.JobList = append(list.JobList, job.ExtJob())
			}
		}
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", JobsFile, err)
	}
	if err := os.MkdirAll(runPath, 0o755); err != nil {
		return fmt.Errorf("creating run path: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runPath, JobsFile), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", JobsFile, err)
	}
	return nil
}

// ReadJobsJSON reads the job list written by WriteJobsJSON.
func ReadJobsJSON(runPath string) ([]entity.ExtJob, error) {
	data, err := os.ReadFile(filepath.Join(runPath, JobsFile))
	if err != nil {
		return nil, err
	}
	var list jobList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", JobsFile, err)
	}
	return list.JobList, nil
}
