package pipeline

import (
	"sync"

	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

// Stage names the phases a category moves through during one run.
type Stage string

const (
	StagePending      Stage = "pending"
	StageFetching     Stage = "fetching"
	StageParsing      Stage = "parsing"
	StageClosureCheck Stage = "closure_check"
	StageCommitting   Stage = "committing"
	StageSkipped      Stage = "skipped"
	StageLogged       Stage = "logged"
	StageFailed       Stage = "failed"
)

// categoryState tracks one category's progress through the run. Guarded
// by its own mutex because categories advance concurrently.
type categoryState struct {
	mu       sync.Mutex
	category domain.Category
	stage    Stage
	records  []domain.Record
	decision domain.ClosureDecision
	err      error
}

func newCategoryState(category domain.Category) *categoryState {
	return &categoryState{category: category, stage: StagePending}
}

func (s *categoryState) setStage(stage Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
}

func (s *categoryState) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = StageFailed
	s.err = err
}

func (s *categoryState) setRecords(records []domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
}

func (s *categoryState) snapshot() (Stage, []domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage, s.records, s.err
}

// severity orders run statuses from best to worst so the run-level
// status can be the worst of its category outcomes.
func severity(status domain.RunStatus) int {
	switch status {
	case domain.RunCommitted:
		return 0
	case domain.RunSkippedHoliday:
		return 1
	case domain.RunSkippedStale:
		return 2
	case domain.RunFailed:
		return 3
	default:
		return 3
	}
}

func worstStatus(outcomes map[string]domain.RunStatus) domain.RunStatus {
	worst := domain.RunCommitted
	for _, status := range outcomes {
		if severity(status) > severity(worst) {
			worst = status
		}
	}
	return worst
}
