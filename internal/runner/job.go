package runner

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	v1 "github.com/unarc/unarc/apis/v1"
)

var defaultValidator = validator.New(validator.WithRequiredStructEnabled())

// ParseExtractJob parses a YAML or JSON job file and validates it. It
// returns a validated ExtractJob struct or an error if parsing or validation
// fails.
func ParseExtractJob(data []byte) (v1.ExtractJob, error) {
	var job v1.ExtractJob
	if err := yaml.Unmarshal(data, &job); err != nil {
		return v1.ExtractJob{}, fmt.Errorf("failed to unmarshal job data: %w", err)
	}

	if err := defaultValidator.Struct(job); err != nil {
		return v1.ExtractJob{}, fmt.Errorf("failed to validate job: %w", err)
	}

	return job, nil
}
