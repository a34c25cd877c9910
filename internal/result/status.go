package result

import "fmt"

// Status is the tri-state verdict carried by every node.
type Status int

const (
	NotTested Status = iota
	Pass
	Failed
)

func (s Status) String() string {
	switch s {
	case NotTested:
		return "NOT_TESTED"
	case Pass:
		return "PASS"
	case Failed:
		return "FAILED"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText lets statuses appear by name in JSON snapshots.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// fold merges a child verdict into an aggregate: FAILED dominates, then PASS.
func fold(agg, child Status) Status {
	if agg == Failed || child == Failed {
		return Failed
	}
	if agg == Pass || child == Pass {
		return Pass
	}
	return NotTested
}

// verdict converts a hook's boolean outcome.
func verdict(ok bool) Status {
	if ok {
		return Pass
	}
	return Failed
}
