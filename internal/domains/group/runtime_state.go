package group

import groupusecase "aim-chat/go-backend/internal/domains/group/usecase"

// RuntimeState is an alias onto the usecase package's implementation so
// SyncOrchestrator (which lives in usecase, below this facade) can hold a
// *RuntimeState directly without an import cycle. See
// usecase/runtime_state.go for the implementation.
type RuntimeState = groupusecase.RuntimeState

func NewRuntimeState() *RuntimeState {
	return groupusecase.NewRuntimeState()
}
