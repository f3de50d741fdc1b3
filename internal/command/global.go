package command

import "sync"

// GlobalState is the process-wide state every execution context shares:
// the error sink stage failures report through (modeled directly by a
// stage's returned error and internal/exec's errgroup-based join) and the
// exit code fixed by the shell's last `exit STATUS` call.
type GlobalState struct {
	mu       sync.Mutex
	exitCode int
	exitSet  bool
}

// NewGlobalState creates a fresh GlobalState with no exit requested.
func NewGlobalState() *GlobalState { return &GlobalState{} }

// RequestExit records STATUS as the process exit code. A later
// call overwrites an earlier one, matching "last call wins".
func (g *GlobalState) RequestExit(status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exitCode = status
	g.exitSet = true
}

// ExitCode reports the code set by RequestExit and whether exit was ever
// requested; absent a request the default exit status is 0.
func (g *GlobalState) ExitCode() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exitCode, g.exitSet
}
