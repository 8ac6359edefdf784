package resit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoster_AuthorityHoldsEveryCapability(t *testing.T) {
	roster := NewRoster("ministry")

	assert.True(t, roster.IsAuthority("ministry"))
	assert.True(t, roster.CanRecord("ministry"))
	assert.True(t, roster.CanApprove("ministry"))

	assert.False(t, roster.IsAuthority("someone.else"))
	assert.False(t, roster.CanRecord("someone.else"))
	assert.False(t, roster.CanApprove("someone.else"))
}

func TestRoster_GrantsAreIndependent(t *testing.T) {
	roster := NewRoster("ministry")
	roster.AddTeacher("teacher.svensson")
	roster.AddApprover("approver.one")

	assert.True(t, roster.CanRecord("teacher.svensson"))
	assert.False(t, roster.CanApprove("teacher.svensson"))

	assert.True(t, roster.CanApprove("approver.one"))
	assert.False(t, roster.CanRecord("approver.one"))

	assert.ElementsMatch(t, []string{"teacher.svensson"}, roster.Teachers())
	assert.ElementsMatch(t, []string{"approver.one"}, roster.Approvers())
}

func TestRoster_EmptyIdentityNeverQualifies(t *testing.T) {
	roster := NewRoster("")

	// a blank authority must not make anonymous callers almighty
	assert.False(t, roster.IsAuthority(""))
	assert.False(t, roster.CanRecord(""))
	assert.False(t, roster.CanApprove(""))
}
