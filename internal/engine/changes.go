package engine

import "github.com/sessionvars/sessionvars/internal/arena"

// changesFrame is one entry in the changes stack (spec §4.4): the set of
// packages and variables mutated at one subtransaction nesting depth.
// Membership is a set, not a list with duplicates, so that touching the
// same object twice at one level is free — this is what makes
// changed_at_current_level cheap on every touch after the first.
type changesFrame struct {
	level     Level
	region    *arena.Region
	packages  map[*Package]struct{}
	variables map[*Variable]struct{}
}

func newChangesFrame(level Level, parent *arena.Region) *changesFrame {
	return &changesFrame{
		level:     level,
		region:    parent.NewChild("changes"),
		packages:  map[*Package]struct{}{},
		variables: map[*Variable]struct{}{},
	}
}

func (f *changesFrame) addPackage(p *Package)   { f.packages[p] = struct{}{} }
func (f *changesFrame) addVariable(v *Variable) { f.variables[v] = struct{}{} }

// changesStack is the per-session stack of changesFrame, one per active
// subtransaction nesting depth (spec invariant 6).
type changesStack struct {
	frames []*changesFrame
	region *arena.Region
}

func newChangesStack(parent *arena.Region) *changesStack {
	return &changesStack{region: parent.NewChild("changes-stack")}
}

func (s *changesStack) depth() int {
	return len(s.frames)
}

func (s *changesStack) top() *changesFrame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// parentOfTop returns the frame beneath the top frame, i.e. the frame that
// should receive objects promoted out of the frame currently being
// popped.
func (s *changesStack) parentOfTop() *changesFrame {
	if len(s.frames) < 2 {
		return nil
	}
	return s.frames[len(s.frames)-2]
}

// pushTo builds frames up to and including level, lazily filling any gap —
// spec §4.4: "lazily building intermediate frames if the stack is absent
// but current_level > 0".
func (s *changesStack) pushTo(level Level) {
	next := Level{Atx: level.Atx, Nest: s.depth() + 1}
	for next.Nest <= level.Nest {
		s.frames = append(s.frames, newChangesFrame(next, s.region))
		next.Nest++
	}
}

// pop removes and returns the top frame.
func (s *changesStack) pop() *changesFrame {
	if len(s.frames) == 0 {
		return nil
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	f.region.Destroy()
	return f
}

// empty reports whether every frame has been popped.
func (s *changesStack) empty() bool {
	return len(s.frames) == 0
}

// destroy tears down the stack's own arena region. Call only once empty;
// the caller (Engine) then drops its reference so the stack is "absent"
// per spec invariant 6, recreating it lazily on the next subtransaction.
func (s *changesStack) destroy() {
	s.region.Destroy()
}
