// Package messages defines the events consumed and produced by the task monitor.
//
// ActivityObservation is produced by an activity classifier and carries label
// candidates ordered by decreasing confidence. TaskStatus is a point-in-time
// projection of a task session, published after every change.
package messages

import "time"

const (
	// NotAvailable is reported for the previous step and current activity
	// until they are first known.
	NotAvailable = "N/A"

	// NoTimer is reported as the remaining time for steps without a duration.
	NoTimer = -1
)

// ActivityObservation is a single classifier result.
type ActivityObservation struct {
	// LabelCandidates are sorted highest confidence first.
	LabelCandidates []string `json:"label_vec"`
	// SourceStamp is when the observed frames were captured, if known.
	SourceStamp *time.Time `json:"source_stamp,omitempty"`
}

// TaskItem is an entry of the task's item inventory.
type TaskItem struct {
	ItemName string `json:"item_name"`
	Quantity int    `json:"quantity"`
}

// TaskStatus is a snapshot of a task session.
type TaskStatus struct {
	SessionID       string     `json:"session_id,omitempty"`
	TaskName        string     `json:"task_name"`
	TaskDescription string     `json:"task_description"`
	Items           []TaskItem `json:"task_items"`
	Steps           []string   `json:"steps"`
	CurrentStep     string     `json:"current_step"`
	PreviousStep    string     `json:"previous_step"`
	CurrentActivity string     `json:"current_activity"`
	// NextExpectedTrigger is empty until first computed.
	NextExpectedTrigger   string    `json:"next_activity,omitempty"`
	TimerRemainingSeconds int       `json:"time_remaining_until_next_task"`
	TimerActive           bool      `json:"timer_active"`
	Degraded              bool      `json:"degraded,omitempty"`
	Timestamp             time.Time `json:"timestamp"`
}

// FirstLabel returns the most confident candidate, if any.
func (o ActivityObservation) FirstLabel() (string, bool) {
	if len(o.LabelCandidates) == 0 {
		return "", false
	}
	return o.LabelCandidates[0], true
}
