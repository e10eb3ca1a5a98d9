package constants

// ProcessingStatus tracks extraction progress on a training document.
// Stable values (store these exact strings in DB).
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// VerificationStatus tracks the human-review lifecycle. Rejection only
// changes status; rows are never deleted.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationInReview   VerificationStatus = "in_review"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"
)

// DatasetSplit assigns a verified document to a training partition.
type DatasetSplit string

const (
	SplitTrain      DatasetSplit = "train"
	SplitValidation DatasetSplit = "validation"
	SplitTest       DatasetSplit = "test"
)

// FineTuningStatus is the job state machine: pending -> uploading -> running
// -> {succeeded | failed | cancelled}. Forward-only; terminal states admit
// no further moves.
type FineTuningStatus string

const (
	FineTuningPending   FineTuningStatus = "pending"
	FineTuningUploading FineTuningStatus = "uploading"
	FineTuningRunning   FineTuningStatus = "running"
	FineTuningSucceeded FineTuningStatus = "succeeded"
	FineTuningFailed    FineTuningStatus = "failed"
	FineTuningCancelled FineTuningStatus = "cancelled"
)

var fineTuningRank = map[FineTuningStatus]int{
	FineTuningPending:   0,
	FineTuningUploading: 1,
	FineTuningRunning:   2,
	FineTuningSucceeded: 3,
	FineTuningFailed:    3,
	FineTuningCancelled: 3,
}

// IsTerminal reports whether a fine-tuning status admits no further moves.
func (s FineTuningStatus) IsTerminal() bool {
	return s == FineTuningSucceeded || s == FineTuningFailed || s == FineTuningCancelled
}

// CanTransitionTo enforces the forward-only state machine.
func (s FineTuningStatus) CanTransitionTo(next FineTuningStatus) bool {
	from, ok := fineTuningRank[s]
	if !ok {
		return false
	}
	to, ok := fineTuningRank[next]
	if !ok {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	return to > from
}

// DeploymentStatus describes a fine-tuned model version's rollout state.
type DeploymentStatus string

const (
	DeploymentInactive DeploymentStatus = "inactive"
	DeploymentTesting  DeploymentStatus = "testing"
	DeploymentActive   DeploymentStatus = "active"
	DeploymentArchived DeploymentStatus = "archived"
)
