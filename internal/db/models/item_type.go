package models

// ItemType identifies the kind of trainable item an assignment refers to.
// The type is part of the assignment identity: the same numeric item ID under
// "module" and "document" refers to two distinct items.
type ItemType string

const (
	// ItemTypeModule indicates the item is a training module.
	ItemTypeModule ItemType = "module"
	// ItemTypeDocument indicates the item is a controlled document.
	ItemTypeDocument ItemType = "document"
)

// Valid reports whether the item type is one of the known values.
func (t ItemType) Valid() bool {
	return t == ItemTypeModule || t == ItemTypeDocument
}

// TrainingOutcome is the recorded result of a training session.
type TrainingOutcome string

const (
	// OutcomeCompleted indicates the training was passed and the assignment is closed.
	OutcomeCompleted TrainingOutcome = "completed"
	// OutcomeNeedsImprovement indicates a partial result; the assignment stays open.
	OutcomeNeedsImprovement TrainingOutcome = "needs_improvement"
	// OutcomeFailed indicates the training was failed; the assignment stays open for a retake.
	OutcomeFailed TrainingOutcome = "failed"
)

// Valid reports whether the outcome is one of the known values.
func (o TrainingOutcome) Valid() bool {
	switch o {
	case OutcomeCompleted, OutcomeNeedsImprovement, OutcomeFailed:
		return true
	}

	return false
}
