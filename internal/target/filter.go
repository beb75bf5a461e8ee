// Package target decides which processes of a trace are in scope.
//
// A Filter starts from a single criterion: a concrete process id, a substring
// of the image file name, or a boolean match expression. Name and expression
// criteria admit nothing until a matching process-start event is observed;
// from then on that process id stays admitted for the rest of the run.
package target

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoSelector is returned when no target criterion was supplied.
var ErrNoSelector = errors.New("no process specified")

// Selector is the criterion a Filter is built from. Exactly one of the
// fields is set.
type Selector struct {
	PID    uint32
	HasPID bool
	Name   string
	Expr   string // expr-lang boolean expression over Process
}

// ParseSelector turns a command-line argument into a Selector: a decimal
// number selects a process id, anything else a name substring.
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Selector{}, ErrNoSelector
	}
	if pid, err := strconv.ParseUint(s, 10, 32); err == nil {
		return Selector{PID: uint32(pid), HasPID: true}, nil
	}
	return Selector{Name: s}, nil
}

// IsZero reports whether the selector carries no criterion.
func (s Selector) IsZero() bool {
	return !s.HasPID && s.Name == "" && s.Expr == ""
}

func (s Selector) String() string {
	switch {
	case s.HasPID:
		return fmt.Sprintf("pid %d", s.PID)
	case s.Name != "":
		return fmt.Sprintf("name %q", s.Name)
	case s.Expr != "":
		return fmt.Sprintf("expr %q", s.Expr)
	default:
		return "none"
	}
}

// Filter holds the set of admitted process ids.
type Filter struct {
	pids    map[uint32]struct{}
	name    string
	matcher *Matcher
}

// New builds a Filter from a selector.
func New(sel Selector) (*Filter, error) {
	if sel.IsZero() {
		return nil, ErrNoSelector
	}

	f := &Filter{pids: make(map[uint32]struct{})}
	switch {
	case sel.HasPID:
		f.pids[sel.PID] = struct{}{}
	case sel.Name != "":
		f.name = sel.Name
	default:
		m, err := NewMatcher(sel.Expr)
		if err != nil {
			return nil, err
		}
		f.matcher = m
	}
	return f, nil
}

// Admit reports whether events of pid are in scope.
func (f *Filter) Admit(pid uint32) bool {
	_, ok := f.pids[pid]
	return ok
}

// Pending reports whether a name or expression criterion is still waiting
// for process-start events.
func (f *Filter) Pending() bool {
	return f.name != "" || f.matcher != nil
}

// ObserveProcessStart admits pid if its image matches the pending criterion.
// It returns true only when pid was newly admitted.
func (f *Filter) ObserveProcessStart(pid uint32, imageFileName, commandLine string) (bool, error) {
	if f.Admit(pid) {
		return false, nil
	}

	var match bool
	switch {
	case f.name != "":
		match = strings.Contains(imageFileName, f.name)
	case f.matcher != nil:
		var err error
		match, err = f.matcher.Match(Process{PID: pid, Image: imageFileName, CommandLine: commandLine})
		if err != nil {
			return false, err
		}
	}

	if match {
		f.pids[pid] = struct{}{}
	}
	return match, nil
}

// Len returns the number of admitted processes.
func (f *Filter) Len() int {
	return len(f.pids)
}
