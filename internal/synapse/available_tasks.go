package synapse

// AvailableTasksResponse is the external shape of the task listing.
type AvailableTasksResponse struct {
	AvailableTasks []string `json:"available_tasks"`
	ErrorMessage   *string  `json:"error_message,omitempty"`
}

// AvailableTasks is the envelope of the task listing query. It has no
// incoming fields.
type AvailableTasks struct {
	header       Header
	tasks        []string
	errorMessage *string
}

func NewAvailableTasks(h Header) AvailableTasks {
	return AvailableTasks{header: h}
}

func decodeAvailableTasks(h Header, body []byte) (Envelope, error) {
	var ignored struct{}
	if err := unmarshalOver(body, &ignored); err != nil {
		return nil, err
	}
	return NewAvailableTasks(h), nil
}

func (a AvailableTasks) Header() Header { return a.header }
func (a AvailableTasks) Task() Task     { return TaskAvailableTasks }
func (a AvailableTasks) Engine() Engine { return EngineNone }
func (a AvailableTasks) Mock() bool     { return false }

// Tasks returns a copy of the listed task names.
func (a AvailableTasks) Tasks() []string {
	return append([]string(nil), a.tasks...)
}

// WithTasks returns a copy of a listing tasks.
func (a AvailableTasks) WithTasks(tasks []string) AvailableTasks {
	a.tasks = append([]string(nil), tasks...)
	a.errorMessage = nil
	return a
}

func (a AvailableTasks) ErrorMessage() (string, bool) {
	if a.errorMessage == nil {
		return "", false
	}
	return *a.errorMessage, true
}

func (a AvailableTasks) Fail(msg string) Envelope {
	a.tasks = nil
	a.errorMessage = stringPtr(msg)
	return a
}

func (a AvailableTasks) Project() any {
	resp := AvailableTasksResponse{AvailableTasks: a.Tasks()}
	if resp.AvailableTasks == nil {
		resp.AvailableTasks = []string{}
	}
	if msg, ok := a.ErrorMessage(); ok {
		resp.ErrorMessage = stringPtr(msg)
	}
	return resp
}
