package executor

import (
	"context"
	"time"

	"github.com/covfuzz/covfuzz/ir"
)

// Fake is a deterministic in-memory Executor for tests. It never spawns the
// real target harness (that harness is out of scope, spec.md §1); instead
// each program is judged by Judge, which a test supplies.
type Fake struct {
	// Judge decides the outcome for a program. If nil, every program
	// succeeds.
	Judge func(p *ir.Program) Outcome
	// ExecTime is returned verbatim if set; otherwise a nominal duration is
	// used, which keeps fixpoint-driver tests independent of wall-clock
	// timing.
	ExecTime time.Duration
	// Calls counts Execute invocations, useful for asserting reducers don't
	// over-test.
	Calls int
}

func (f *Fake) Execute(ctx context.Context, p *ir.Program, timeout time.Duration) (*Execution, error) {
	f.Calls++
	outcome := Succeeded
	if f.Judge != nil {
		outcome = f.Judge(p)
	}
	execTime := f.ExecTime
	if execTime == 0 {
		execTime = time.Millisecond
	}
	return &Execution{
		Program:  p,
		Outcome:  outcome,
		ExecTime: execTime,
	}, nil
}
