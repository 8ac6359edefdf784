package models

// ResitRequest is a point-in-time snapshot of one resit workflow instance.
// The engine hands out copies; mutating a snapshot has no effect on the
// workflow state.
type ResitRequest struct {
	ID        int64    `json:"id"`
	Student   string   `json:"student"`
	Reason    string   `json:"reason"`
	Timestamp int64    `json:"timestamp"`
	Resolved  bool     `json:"resolved"`
	Executed  bool     `json:"executed"`
	Approvals int      `json:"approvals"`
	Approvers []string `json:"approvers"`
}

// State renders the request's position in the
// Requested -> Resolved -> Executed lifecycle.
func (r ResitRequest) State() string {
	switch {
	case r.Executed:
		return "executed"
	case r.Resolved:
		return "resolved"
	default:
		return "requested"
	}
}
