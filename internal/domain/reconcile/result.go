package reconcile

import (
	"errors"
	"fmt"
)

// Downstream targets
const (
	TargetCommerce = "commerce"
	TargetGateway  = "gateway"
)

// CallResult is the outcome of a single downstream call. Reconcilers collect
// one per call and apply a policy to the set: the forward path continues past
// failures, the reverse path surfaces them.
type CallResult struct {
	Target     string
	Operation  string
	ResourceID string
	Err        error
}

// NewCallResult builds a result for a completed call
func NewCallResult(target, operation, resourceID string, err error) CallResult {
	return CallResult{Target: target, Operation: operation, ResourceID: resourceID, Err: err}
}

// OK reports whether the call succeeded
func (r CallResult) OK() bool {
	return r.Err == nil
}

// NotFound reports whether the call failed because the resource does not exist
func (r CallResult) NotFound() bool {
	return errors.Is(r.Err, ErrNotFound)
}

func (r CallResult) String() string {
	if r.Err == nil {
		return fmt.Sprintf("%s.%s(%s): ok", r.Target, r.Operation, r.ResourceID)
	}
	return fmt.Sprintf("%s.%s(%s): %v", r.Target, r.Operation, r.ResourceID, r.Err)
}

// Results is the ordered set of calls made while handling one event
type Results []CallResult

// Failed returns the results that carry an error
func (rs Results) Failed() Results {
	var out Results
	for _, r := range rs {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Err surfaces the failures as a single error wrapping ErrUpstream, or nil
func (rs Results) Err() error {
	failed := rs.Failed()
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failed)+1)
	errs = append(errs, ErrUpstream)
	for _, r := range failed {
		errs = append(errs, fmt.Errorf("%s.%s(%s): %w", r.Target, r.Operation, r.ResourceID, r.Err))
	}
	return errors.Join(errs...)
}
