package synapse

import "sort"

// Task names one unit of work the gateway can dispatch.
type Task string

const (
	TaskTextToSpeechClone Task = "tts_clone"
	TaskAvailableTasks    Task = "available_tasks"
)

// Engine names a backend algorithm variant for a task.
type Engine string

const (
	// EngineNone is the engine of tasks that have no variants.
	EngineNone Engine = ""

	EngineStyleTTS2 Engine = "StyleTTS2"
	// EngineOpenVoice is reserved: known, but rejected until a worker
	// implementation exists.
	EngineOpenVoice Engine = "OpenVoice"
)

// EngineSet is the closed set of engines registered for one task.
type EngineSet struct {
	implemented map[Engine]struct{}
	reserved    map[Engine]struct{}
}

func newEngineSet(implemented []Engine, reserved []Engine) EngineSet {
	s := EngineSet{
		implemented: make(map[Engine]struct{}, len(implemented)),
		reserved:    make(map[Engine]struct{}, len(reserved)),
	}
	for _, e := range implemented {
		s.implemented[e] = struct{}{}
	}
	for _, e := range reserved {
		s.reserved[e] = struct{}{}
	}
	return s
}

// Supports reports whether e is implemented for the task.
func (s EngineSet) Supports(e Engine) bool {
	_, ok := s.implemented[e]
	return ok
}

// Reserved reports whether e is a known variant that is not implemented yet.
func (s EngineSet) Reserved(e Engine) bool {
	_, ok := s.reserved[e]
	return ok
}

// Engines returns the implemented engines, sorted.
func (s EngineSet) Engines() []Engine {
	out := make([]Engine, 0, len(s.implemented))
	for e := range s.implemented {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// taskEngines is fixed at compile time and never mutated.
var taskEngines = map[Task]EngineSet{
	TaskTextToSpeechClone: newEngineSet([]Engine{EngineStyleTTS2}, []Engine{EngineOpenVoice}),
	TaskAvailableTasks:    newEngineSet([]Engine{EngineNone}, nil),
}

// SupportedEngines returns the engine set registered for task. Unknown tasks
// get an empty set, which supports nothing.
func SupportedEngines(task Task) EngineSet {
	return taskEngines[task]
}

// KnownTask reports whether task has an envelope type.
func KnownTask(task Task) bool {
	_, ok := decoders[task]
	return ok
}
