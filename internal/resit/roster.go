// internal/resit/roster.go
package resit

// Roster tracks who may do what. One authority identity controls the
// roster itself, teachers record attempts, approvers vote on resits.
// The authority implicitly holds both other capabilities.
//
// Roster is not safe for concurrent use on its own. Engine guards all
// access with its mutex.
type Roster struct {
	authority string
	teachers  map[string]bool
	approvers map[string]bool
}

func NewRoster(authority string) *Roster {
	return &Roster{
		authority: authority,
		teachers:  make(map[string]bool),
		approvers: make(map[string]bool),
	}
}

func (r *Roster) Authority() string {
	return r.authority
}

func (r *Roster) IsAuthority(identity string) bool {
	return identity != "" && identity == r.authority
}

// CanRecord reports whether identity may record attempts.
func (r *Roster) CanRecord(identity string) bool {
	return r.teachers[identity] || r.IsAuthority(identity)
}

// CanApprove reports whether identity may vote on resit requests.
func (r *Roster) CanApprove(identity string) bool {
	return r.approvers[identity] || r.IsAuthority(identity)
}

func (r *Roster) AddTeacher(identity string) {
	r.teachers[identity] = true
}

func (r *Roster) AddApprover(identity string) {
	r.approvers[identity] = true
}

// Teachers returns the explicitly granted recorder identities, not
// counting the authority.
func (r *Roster) Teachers() []string {
	out := make([]string, 0, len(r.teachers))
	for identity := range r.teachers {
		out = append(out, identity)
	}
	return out
}

// Approvers returns the explicitly granted approver identities, not
// counting the authority.
func (r *Roster) Approvers() []string {
	out := make([]string, 0, len(r.approvers))
	for identity := range r.approvers {
		out = append(out, identity)
	}
	return out
}
