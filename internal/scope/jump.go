package scope

import (
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/value"
)

func invalidJump(what string) error {
	return crusherr.New(crusherr.InvalidJump, "`%s` command outside of loop", what)
}

// DoBreak walks the calling-scope chain until a Loop frame is found,
// setting is_stopped on every traversed frame so intermediate Block/
// Conditional frames abort promptly. Fails with InvalidJump
// if the chain ends at a Namespace or readonly frame.
func (s *Scope) DoBreak() error {
	s.mu.Lock()
	if s.isReadonly {
		s.mu.Unlock()
		return invalidJump("break")
	}
	if s.scopeType == Loop {
		s.isStopped = true
		s.mu.Unlock()
		return nil
	}
	caller := s.callingScope
	s.mu.Unlock()
	if caller == nil {
		return invalidJump("break")
	}
	if err := caller.DoBreak(); err != nil {
		return err
	}
	s.mu.Lock()
	s.isStopped = true
	s.mu.Unlock()
	return nil
}

// DoContinue is DoBreak's sibling: it requires a Loop frame in the calling
// chain but does not itself mark the Loop frame stopped —
// the loop body simply moves to its next iteration.
func (s *Scope) DoContinue() error {
	s.mu.Lock()
	if s.isReadonly {
		s.mu.Unlock()
		return invalidJump("continue")
	}
	if s.scopeType == Loop {
		s.mu.Unlock()
		return nil
	}
	caller := s.callingScope
	s.mu.Unlock()
	if caller == nil {
		return invalidJump("continue")
	}
	if err := caller.DoContinue(); err != nil {
		return err
	}
	s.mu.Lock()
	s.isStopped = true
	s.mu.Unlock()
	return nil
}

// DoReturn walks the calling-scope chain until a Closure frame is found,
// setting return_value there and is_stopped on every traversed frame. A nil v
// is a bare `return` with no value.
func (s *Scope) DoReturn(v value.Value) error {
	s.mu.Lock()
	if s.isReadonly {
		s.mu.Unlock()
		return invalidJump("return")
	}
	if s.scopeType == Closure {
		s.isStopped = true
		s.returnValue = v
		s.hasReturn = true
		s.mu.Unlock()
		return nil
	}
	caller := s.callingScope
	s.mu.Unlock()
	if caller == nil {
		return invalidJump("return")
	}
	if err := caller.DoReturn(v); err != nil {
		return err
	}
	s.mu.Lock()
	s.isStopped = true
	s.mu.Unlock()
	return nil
}

// TakeReturnValue returns the value set by DoReturn (if any) and whether a
// return happened, mirroring the Rust send_return_value's "take" semantics:
// it clears hasReturn so repeated calls after the first don't resurface it.
func (s *Scope) TakeReturnValue() (value.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasReturn {
		return nil, false
	}
	s.hasReturn = false
	v := s.returnValue
	s.returnValue = nil
	return v, true
}

// DoExit sets is_stopped=true on this frame and propagates through both
// calling_scope and parent_scope. Unlike break/continue/
// return it never fails: exiting the shell always succeeds.
func (s *Scope) DoExit() error {
	s.mu.Lock()
	if s.isReadonly {
		s.mu.Unlock()
		return nil
	}
	s.isStopped = true
	caller := s.callingScope
	parent := s.parentScope
	s.mu.Unlock()
	if caller != nil {
		_ = caller.DoExit()
	}
	if parent != nil {
		_ = parent.DoExit()
	}
	return nil
}

// IsStopped reports whether do_break/do_continue/do_return/do_exit have
// marked this frame to abandon further work.
func (s *Scope) IsStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isStopped
}

// StackTrace walks the parentScope chain, collecting scope_type.name plus
// optional frame name, root-first.
func (s *Scope) StackTrace() []string {
	s.mu.Lock()
	parent := s.parentScope
	desc := s.describeLocked()
	s.mu.Unlock()
	var out []string
	if parent != nil {
		out = parent.StackTrace()
	}
	return append(out, desc)
}
