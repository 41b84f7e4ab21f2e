// Package guard holds in-process protections: bounded retry, circuit
// breaking, rate limiting and duplicate suppression.
package guard

// Result is the verdict of a guard check.
type Result struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Guard   string `json:"guard,omitempty"` // which guard blocked
}

var allowed = Result{Allowed: true}
