package domain

// Status is the lifecycle state of a pipeline execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	case StatusPending, StatusRunning:
		return false
	}
	return false
}

// Stage is one ordered unit of work within a pipeline execution.
type Stage string

const (
	StageValidating           Stage = "validating"
	StageGeneratingNarratives Stage = "generating_narratives"
	StageAwaitingMaps         Stage = "awaiting_maps"
	StageGeneratingPDF        Stage = "generating_pdf"
	StageStoringArtifacts     Stage = "storing_artifacts"
	StageCompleted            Stage = "completed"
	StageFailed               Stage = "failed"
)

// RunStages returns the five processing stages in execution order.
// StageCompleted and StageFailed are terminal markers, not work.
func RunStages() []Stage {
	return []Stage{
		StageValidating,
		StageGeneratingNarratives,
		StageAwaitingMaps,
		StageGeneratingPDF,
		StageStoringArtifacts,
	}
}

// ProgressBounds returns the progress percentage range a stage covers.
// The bounds are a contract consumed by status pollers; values within a
// stage are implementation detail.
func (g Stage) ProgressBounds() (lo, hi int) {
	switch g {
	case StageValidating:
		return 0, 10
	case StageGeneratingNarratives:
		return 10, 40
	case StageAwaitingMaps:
		return 40, 50
	case StageGeneratingPDF:
		return 50, 80
	case StageStoringArtifacts:
		return 80, 100
	case StageCompleted:
		return 100, 100
	case StageFailed:
		return 0, 100
	}
	return 0, 100
}
