package tap

import "fmt"

// State is one of the 16 IEEE 1149.1 TAP controller states.
type State uint8

const (
	TestLogicReset State = iota
	RunTestIdle
	SelectDRScan
	CaptureDR
	ShiftDR
	Exit1DR
	PauseDR
	Exit2DR
	UpdateDR
	SelectIRScan
	CaptureIR
	ShiftIR
	Exit1IR
	PauseIR
	Exit2IR
	UpdateIR

	numStates
)

var stateNames = [numStates]string{
	"TestLogicReset", "RunTestIdle",
	"SelectDRScan", "CaptureDR", "ShiftDR", "Exit1DR", "PauseDR", "Exit2DR", "UpdateDR",
	"SelectIRScan", "CaptureIR", "ShiftIR", "Exit1IR", "PauseIR", "Exit2IR", "UpdateIR",
}

func (s State) String() string {
	if s < numStates {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// next[s][0] is the state after clocking TMS=0, next[s][1] after TMS=1.
var next = [numStates][2]State{
	TestLogicReset: {RunTestIdle, TestLogicReset},
	RunTestIdle:    {RunTestIdle, SelectDRScan},
	SelectDRScan:   {CaptureDR, SelectIRScan},
	CaptureDR:      {ShiftDR, Exit1DR},
	ShiftDR:        {ShiftDR, Exit1DR},
	Exit1DR:        {PauseDR, UpdateDR},
	PauseDR:        {PauseDR, Exit2DR},
	Exit2DR:        {ShiftDR, UpdateDR},
	UpdateDR:       {RunTestIdle, SelectDRScan},
	SelectIRScan:   {CaptureIR, TestLogicReset},
	CaptureIR:      {ShiftIR, Exit1IR},
	ShiftIR:        {ShiftIR, Exit1IR},
	Exit1IR:        {PauseIR, UpdateIR},
	PauseIR:        {PauseIR, Exit2IR},
	Exit2IR:        {ShiftIR, UpdateIR},
	UpdateIR:       {RunTestIdle, SelectDRScan},
}

// Next returns the TAP state reached by one TCK cycle with the given TMS bit.
func Next(s State, tms bool) State {
	if s >= numStates {
		panic(fmt.Sprintf("tap: invalid state %d", uint8(s)))
	}
	if tms {
		return next[s][1]
	}
	return next[s][0]
}

// Machine tracks the controller state locally. It performs no I/O; it hands
// out TMS sequences for an adapter to drive.
type Machine struct {
	state State
}

// NewMachine returns a machine initialized to Test-Logic-Reset.
func NewMachine() *Machine {
	return &Machine{state: TestLogicReset}
}

// State reports the currently tracked state.
func (m *Machine) State() State {
	return m.state
}

// Clock advances one TCK cycle and returns the new state.
func (m *Machine) Clock(tms bool) State {
	m.state = Next(m.state, tms)
	return m.state
}

// Reset produces the standard five TMS=1 cycles that force any TAP into
// Test-Logic-Reset, advancing the machine as a side effect.
func (m *Machine) Reset() []bool {
	tms := make([]bool, 5)
	for i := range tms {
		tms[i] = true
		m.Clock(true)
	}
	return tms
}

// PathTo computes the shortest TMS sequence from the current state to target
// and advances the machine along it.
func (m *Machine) PathTo(target State) ([]bool, error) {
	path, err := shortestPath(m.state, target)
	if err != nil {
		return nil, err
	}
	for _, bit := range path {
		m.Clock(bit)
	}
	return path, nil
}

// shortestPath runs a BFS over the 16-state transition graph.
func shortestPath(from, to State) ([]bool, error) {
	if from >= numStates || to >= numStates {
		return nil, fmt.Errorf("tap: invalid state pair %d -> %d", uint8(from), uint8(to))
	}
	if from == to {
		return nil, nil
	}

	type node struct {
		state State
		tms   []bool
	}
	queue := []node{{state: from}}
	var visited [numStates]bool
	visited[from] = true

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, tms := range []bool{false, true} {
			n := Next(cur.state, tms)
			if visited[n] {
				continue
			}
			path := append(append([]bool{}, cur.tms...), tms)
			if n == to {
				return path, nil
			}
			visited[n] = true
			queue = append(queue, node{state: n, tms: path})
		}
	}
	return nil, fmt.Errorf("tap: no path from %s to %s", from, to)
}
