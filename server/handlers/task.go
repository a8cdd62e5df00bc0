package handlers

import (
	"net/http"

	"github.com/nomis52/taskmonitor/task"
)

// StepResponse is a step of the task as shown by the API.
type StepResponse struct {
	Name            string `json:"name"`
	DisplayName     string `json:"display_name"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// TaskResponse is the JSON form of a task definition.
type TaskResponse struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Items       []task.Item       `json:"items"`
	Steps       []StepResponse    `json:"steps"`
	Transitions []task.Transition `json:"transitions"`
	Vocabulary  map[string]string `json:"vocabulary"`
}

// TaskHandler serves the definition of the task being tracked.
type TaskHandler struct {
	provider TaskProvider
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(provider TaskProvider) *TaskHandler {
	return &TaskHandler{provider: provider}
}

// ServeHTTP implements http.Handler.
func (h *TaskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	def, err := h.provider.Definition()
	if err != nil {
		writeError(w, trackerStatusCode(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newTaskResponse(def))
}

func newTaskResponse(def *task.Definition) TaskResponse {
	steps := make([]StepResponse, 0, len(def.Steps()))
	for _, s := range def.Steps() {
		steps = append(steps, StepResponse{
			Name:            s.Name,
			DisplayName:     task.HumanReadable(s.Name),
			DurationSeconds: s.DurationSeconds,
		})
	}
	return TaskResponse{
		Name:        def.Name(),
		Description: def.Description(),
		Items:       def.Items(),
		Steps:       steps,
		Transitions: def.Transitions(),
		Vocabulary:  def.Vocabulary(),
	}
}
