package job

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xraph/jobstore"
)

// Well-known state names written by the processing framework. The store
// treats state names as opaque strings; these exist for the monitoring
// projections that count and list jobs per state.
const (
	StateEnqueued   = "Enqueued"
	StateScheduled  = "Scheduled"
	StateProcessing = "Processing"
	StateSucceeded  = "Succeeded"
	StateFailed     = "Failed"
	StateDeleted    = "Deleted"
	StateAwaiting   = "Awaiting"
)

// State is one entry of a job's append-only state history.
type State struct {
	Name      string            `json:"name"`
	Reason    string            `json:"reason,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Job is a persisted background job.
type Job struct {
	// ID is the decimal rendering of the store-assigned sequence number.
	ID string `json:"id"`

	// InvocationData is the encoded Invocation; Encoding names the codec.
	InvocationData []byte `json:"invocation_data"`
	Encoding       string `json:"encoding"`

	// Arguments mirrors the invocation arguments as a JSON array for
	// readers that do not decode InvocationData.
	Arguments string `json:"arguments"`

	Parameters   map[string]string `json:"parameters,omitempty"`
	StateName    string            `json:"state_name,omitempty"`
	StateHistory []State           `json:"state_history,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	ExpireAt     *time.Time        `json:"expire_at,omitempty"`
}

// AppendState adds s to the history and makes it the current state.
// History is never rewritten.
func (j *Job) AppendState(s State) {
	j.StateHistory = append(j.StateHistory, s)
	j.StateName = s.Name
}

// LastState returns the most recently appended state, or nil.
func (j *Job) LastState() *State {
	if len(j.StateHistory) == 0 {
		return nil
	}
	s := j.StateHistory[len(j.StateHistory)-1]
	return &s
}

// ParseID converts a job identifier to its sequence number.
func ParseID(jobID string) (uint64, error) {
	n, err := strconv.ParseUint(jobID, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: job id %q", jobstore.ErrInvalidArgument, jobID)
	}
	return n, nil
}

// FormatID renders a sequence number as a job identifier.
func FormatID(seq uint64) string {
	return strconv.FormatUint(seq, 10)
}
