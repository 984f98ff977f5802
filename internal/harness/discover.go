package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Summary totals the results of a scenario directory.
type Summary struct {
	Total    int       `json:"total"`
	Passed   int       `json:"passed"`
	Failed   int       `json:"failed"`
	Failures []Failure `json:"failures,omitempty"`
}

// Failure is one scenario that failed to load, run or pass.
type Failure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// FindScenarios returns the .yaml and .yml files under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// RunAll loads and runs every scenario in paths. Spec paths resolve
// against each scenario's own directory.
func RunAll(paths []string, opts ...Option) *Summary {
	sum := &Summary{}
	for _, path := range paths {
		sum.Total++
		scenario, err := LoadScenarioWithBasePath(path, filepath.Dir(path))
		if err != nil {
			sum.fail("", path, fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}
		result, err := Run(scenario, opts...)
		if err != nil {
			sum.fail(scenario.Name, path, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}
		if !result.Pass {
			sum.fail(scenario.Name, path, result.Errors...)
			continue
		}
		sum.Passed++
	}
	return sum
}

func (s *Summary) fail(name, path string, errs ...string) {
	s.Failed++
	s.Failures = append(s.Failures, Failure{Scenario: name, Path: path, Errors: errs})
}
