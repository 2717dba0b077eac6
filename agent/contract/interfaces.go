package contract

import "context"

// Proposer turns an operator message plus a snapshot into command invocations.
// Its output is untrusted: every invocation is validated by the executor.
type Proposer interface {
	Propose(ctx context.Context, req ProposerRequest) (ProposerResponse, error)
}

// StreamingProposer reports invocations while the response is still streaming.
// observe receives the cumulative list of complete invocations and may see the
// same invocation many times.
type StreamingProposer interface {
	Proposer
	Stream(ctx context.Context, req ProposerRequest, observe func([]CommandInvocation)) (ProposerResponse, error)
}

// CommandExecutor validates and executes one invocation. It never touches quote
// state and never fails with a Go error; problems come back as ActionError.
type CommandExecutor interface {
	Execute(ctx context.Context, inv CommandInvocation) CommandResult
}
