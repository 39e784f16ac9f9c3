package job

import (
	"fmt"
	"time"
)

// LoadError reports that a stored invocation could not be turned back into
// something runnable. It is attached to Data rather than returned.
type LoadError struct {
	JobID string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("job %s: load invocation: %v", e.JobID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Data is the decoded view of a job handed to processing code.
type Data struct {
	Invocation *Invocation
	Arguments  string
	State      string
	CreatedAt  time.Time

	// LoadErr is set when Invocation could not be decoded or resolved.
	LoadErr error
}

// Resolver reports whether an invocation can be run by this process.
type Resolver interface {
	Resolve(inv *Invocation) (HandlerFunc, error)
}

// Decode builds Data from j. A nil resolver skips the handler lookup.
func Decode(j *Job, resolver Resolver) *Data {
	d := &Data{
		Arguments: j.Arguments,
		State:     j.StateName,
		CreatedAt: j.CreatedAt,
	}

	inv, err := GetCodec(j.Encoding).Decode(j.InvocationData)
	if err != nil {
		d.LoadErr = &LoadError{JobID: j.ID, Err: err}
		return d
	}
	d.Invocation = inv

	if resolver != nil {
		if _, err := resolver.Resolve(inv); err != nil {
			d.LoadErr = &LoadError{JobID: j.ID, Err: err}
		}
	}
	return d
}
