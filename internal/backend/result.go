package backend

// Result is the outcome of one worker call: either an output payload or the
// reason none was obtained.
type Result struct {
	output  string
	present bool
	reason  string
}

// Present wraps a worker output.
func Present(output string) Result {
	return Result{output: output, present: true}
}

// Absent records that no usable output was obtained.
func Absent(reason string) Result {
	return Result{reason: reason}
}

// Output returns the worker output and whether there was one.
func (r Result) Output() (string, bool) {
	return r.output, r.present
}

// Present reports whether the call produced an output.
func (r Result) Present() bool { return r.present }

// Reason explains an absent result. Empty for present results.
func (r Result) Reason() string { return r.reason }
