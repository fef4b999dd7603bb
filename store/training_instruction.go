package store

// TrainingInstruction is an operator-authored instruction injected into every
// composed system prompt. Listed newest-first.
type TrainingInstruction struct {
	Instruction string
	CreatedTs   int64
	ID          int32
}

type DeleteTrainingInstruction struct {
	ID int32
}
