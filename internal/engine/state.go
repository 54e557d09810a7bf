package engine

// State is a phase of a build
type State int

const (
	Configuring State = iota
	Discovering
	Expanding
	Collecting
	Finalizing
	Done
)

var stateNames = [...]string{"configuring", "discovering", "expanding", "collecting", "finalizing", "done"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
