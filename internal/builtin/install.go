package builtin

import (
	"sync"

	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
)

// methodsOnce guards the process-wide method tables: Install may run once
// per root (tests build several), but a Kind's method set is registered once.
var methodsOnce sync.Once

// Install wires the seed builtin library into root, the one step every
// frontend (cmd/crush, tests constructing a scope by hand) must call before
// running any program: without it no "global:..." qualified name resolves
// at all, since resolveName's first path segment is always looked up via
// plain scope.Get.
func Install(root *scope.Scope) error {
	// internal/exec/exec.go's resolveName splits a qualified name on ":" and
	// resolves the first segment with a plain scope.Get before walking the
	// rest with value.FieldLookup. scope.CreateRoot never gives itself a
	// name, so "global:control:if" has nothing to anchor on until root
	// declares itself under its own conventional name.
	if err := root.Declare("global", value.Scope{Handle: root}); err != nil {
		return err
	}

	// Pure method-table installations: these never go through scope.Declare,
	// so they don't collide with the "__" reserved-prefix check and can run
	// in any order relative to the namespace registrations below.
	methodsOnce.Do(func() {
		registerArithmeticMethods()
		registerMatchMethods()
		registerStringAddMethod()
	})

	namespaces := []struct {
		name, description string
		load              func(*scope.Loader) error
	}{
		{"control", "if/while/for/loop and nonlocal jumps", registerControl},
		{"comp", "ordering and equality comparisons", registerComp},
		{"cond", "boolean and/or", registerCond},
		{"var", "variable declaration and assignment helpers", registerVar},
		{"string", "string manipulation", registerString},
		{"list", "list construction and manipulation", registerList},
		{"math", "arithmetic helpers", registerMath},
		{"host", "operating-system facing commands", registerHost},
	}
	for _, ns := range namespaces {
		if _, err := root.CreateNamespace(ns.name, ns.description, ns.load); err != nil {
			return err
		}
	}

	return registerStreamCommands(root)
}
