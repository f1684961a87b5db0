// Command prolog is a thin, explicitly non-authoritative demonstration
// shell for pkg/wam (SPEC_FULL.md §6). There is no parser or printer in
// scope for the core (spec.md §1): this CLI only ever runs a fixed set of
// pre-registered demo queries, selected by name, each built directly on
// the machine's term-construction surface (pkg/wam's NewAtom/NewStruct/
// NewList) or hand-assembled as real compiled clauses (pkg/wam's
// Assembler/LoadClauses, the same mechanism builtins.go itself uses) —
// never by reading arbitrary Prolog syntax.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/gitrdm/gowam/pkg/wam"
)

var (
	flagTrace        = pflag.Bool("trace", false, "print every instruction the interpreter dispatches")
	flagQuiet        = pflag.BoolP("quiet", "q", false, "suppress the banner and prompt")
	flagRun          = pflag.StringP("file", "f", "", "run one named demo non-interactively and exit")
	flagListBuiltins = pflag.Bool("list-builtins", false, "print every registered builtin indicator and exit")
)

func main() {
	pflag.Parse()

	m := wam.NewMachine(wam.WithOutput(os.Stdout))

	if *flagListBuiltins {
		listBuiltins(m)
		return
	}

	trace := newTraceWriter()
	if *flagTrace {
		trace.Add(traceLine)
	}
	if trace.Len() > 0 {
		m = wam.NewMachine(wam.WithOutput(os.Stdout), wam.WithTrace(trace.Hook))
	}
	demos := buildDemos(m)

	if *flagRun != "" {
		runDemo(m, demos, *flagRun)
		return
	}

	if !*flagQuiet {
		fmt.Println("gowam — a Warren Abstract Machine shell (demo predicates only, type 'help')")
	}
	repl(m, demos)
}

func traceLine(pc wam.CodePtr, instr wam.Instruction, m *wam.Machine) {
	fmt.Fprintf(os.Stderr, "% 5d  op=%d\n", pc, instr.Op)
}

// listBuiltins backs --list-builtins: every registered builtin indicator,
// in the BuiltinTable's own registration order (pkg/wam's Names()), so a
// reader can see exactly what the hybrid builtin program (SPEC_FULL.md
// §4.8) actually installed without cross-referencing builtins.go by hand.
func listBuiltins(m *wam.Machine) {
	for _, key := range m.Builtins.Names() {
		fmt.Printf("%s/%d\n", m.Atoms.Name(key.Name), key.Arity)
	}
}

// repl implements §6's CLI surface: quit/clear/:{ }:/:{{ }}: meta-inputs,
// otherwise a demo name is looked up and run, with space/; browsing
// between successive answers via Redo and raw-mode terminal input while
// doing so.
func repl(m *wam.Machine, demos map[string]demo) {
	in := bufio.NewScanner(os.Stdin)
	for {
		if !*flagQuiet {
			fmt.Print("?- ")
		}
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())
		switch {
		case line == "":
			continue
		case line == "quit":
			os.Exit(0)
		case line == "clear":
			m.Predicates.Clear()
			fmt.Println("user database cleared")
		case line == "help":
			printHelp(demos)
		case strings.HasPrefix(line, ":{{"):
			batch := collectUntil(in, "}}:")
			fmt.Printf("(demo CLI: %d declaration line(s) acknowledged, no parser in scope)\n", len(batch))
		case strings.HasPrefix(line, ":{"):
			query := collectUntil(in, "}:")
			runDemo(m, demos, strings.Join(query, " "))
		default:
			runDemo(m, demos, strings.TrimSuffix(line, "."))
		}
	}
}

func collectUntil(in *bufio.Scanner, closer string) []string {
	var lines []string
	for in.Scan() {
		t := in.Text()
		if strings.Contains(t, closer) {
			break
		}
		lines = append(lines, t)
	}
	return lines
}

func printHelp(demos map[string]demo) {
	fmt.Println("available demos:")
	for name, d := range demos {
		fmt.Printf("  %-24s %s\n", name, d.doc)
	}
	fmt.Println("meta-inputs: quit, clear, :{ query }:, :{{ declarations }}:")
}

// runDemo looks up name, runs it to a first solution, and then offers
// answer browsing exactly like §6 describes: space/';' asks for the next
// solution via Redo, '.' stops.
func runDemo(m *wam.Machine, demos map[string]demo, name string) {
	d, ok := demos[strings.TrimSpace(name)]
	if !ok {
		color.New(color.FgRed).Printf("error: no such demo %q (type 'help')\n", name)
		return
	}
	// Reset clears the heap/stacks/trail but leaves Code and Predicates
	// alone (machine.go), so demo clauses registered once at startup
	// stay valid; only the goal term itself needs rebuilding against the
	// now-empty heap.
	m.Reset()

	goal, vars := d.build(m)
	ok2, err := m.Solve(goal)
	reportAndBrowse(m, vars, ok2, err)
}

// answerLine renders " (X = <term>, Y = <term>)" for a solution's reported
// variables, in the order build declared them, or "" when there are none.
func answerLine(m *wam.Machine, vars []namedVar) string {
	if len(vars) == 0 {
		return ""
	}
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = fmt.Sprintf("%s = %s", v.name, m.FormatTerm(v.cell))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func reportAndBrowse(m *wam.Machine, vars []namedVar, ok bool, err error) {
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)

	if err != nil {
		red.Printf("error: exception thrown: %v\n", err)
		return
	}
	if !ok {
		red.Println("false.")
		return
	}
	green.Printf("true%s.\n", answerLine(m, vars))

	for len(m.Or) > 0 {
		if !promptNext() {
			return
		}
		more, err := m.Redo()
		if err != nil {
			red.Printf("error: exception thrown: %v\n", err)
			return
		}
		if !more {
			red.Println("false.")
			return
		}
		green.Printf("true%s.\n", answerLine(m, vars))
	}
}

// promptNext puts the terminal in raw mode only for the duration of
// reading one keypress (§6: "the terminal is put in raw mode only during
// answer browsing"), falling back to line mode when stdin isn't a TTY
// (piped input, tests).
func promptNext() bool {
	fmt.Print(" ")
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		var s string
		fmt.Scanln(&s)
		return s == "" || s == " " || s == ";"
	}
	fd := int(os.Stdin.Fd())
	old, err := term.MakeRaw(fd)
	if err != nil {
		var s string
		fmt.Scanln(&s)
		return s == "" || s == " " || s == ";"
	}
	defer term.Restore(fd, old)
	buf := make([]byte, 1)
	os.Stdin.Read(buf)
	return buf[0] == ' ' || buf[0] == ';'
}
