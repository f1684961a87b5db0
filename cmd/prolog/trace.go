package main

import "github.com/gitrdm/gowam/pkg/wam"

// TraceWriter composes multiple instruction hooks into the single
// func(pc, instr, m) value pkg/wam's Machine.Trace field accepts, the way
// other_examples's axone-protocol-prolog chains its own VM hooks via
// CompositeHook: hooks run in registration order against every dispatched
// instruction. Unlike CompositeHook, a hook here cannot abort the run (the
// machine's Trace has no error return — tracing is purely observational,
// §1.1), so Hook simply runs every registered hook in turn.
type TraceWriter struct {
	hooks []func(pc wam.CodePtr, instr wam.Instruction, m *wam.Machine)
}

// newTraceWriter returns an empty TraceWriter.
func newTraceWriter() *TraceWriter {
	return &TraceWriter{}
}

// Add registers another hook to run on every instruction.
func (tw *TraceWriter) Add(hook func(pc wam.CodePtr, instr wam.Instruction, m *wam.Machine)) {
	tw.hooks = append(tw.hooks, hook)
}

// Len reports how many hooks are registered.
func (tw *TraceWriter) Len() int { return len(tw.hooks) }

// Hook is the composed func(pc, instr, m) wired to Machine.Trace.
func (tw *TraceWriter) Hook(pc wam.CodePtr, instr wam.Instruction, m *wam.Machine) {
	for _, h := range tw.hooks {
		h(pc, instr, m)
	}
}
