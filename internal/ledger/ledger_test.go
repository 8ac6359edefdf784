package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalGrade(t *testing.T) {
	testCases := []struct {
		name     string
		test     int64
		exam     int64
		expected int64
	}{
		{
			name:     "80 and 90 weigh to 86",
			test:     80,
			exam:     90,
			expected: 86,
		},
		{
			name:     "all zeroes stay zero",
			test:     0,
			exam:     0,
			expected: 0,
		},
		{
			name:     "division floors, never rounds",
			test:     33,
			exam:     77, // (1320+4620)/100 = 59.4
			expected: 59,
		},
		{
			name:     "exam weighs more than test",
			test:     100,
			exam:     0,
			expected: 40,
		},
		{
			name:     "test weighs less than exam",
			test:     0,
			exam:     100,
			expected: 60,
		},
		{
			name:     "endgame scenario from the workflow tests",
			test:     70,
			exam:     80,
			expected: 76,
		},
		{
			name:     "large scores do not wrap",
			test:     1_000_000_000,
			exam:     1_000_000_000,
			expected: 1_000_000_000,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, FinalGrade(tc.test, tc.exam))
		})
	}
}

func TestLedgerAppendReturnsGrowingIndexes(t *testing.T) {
	l := New()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC).Unix()

	index, attempt := l.Append("anna.larsson", 50, 60, "first sitting", now)
	assert.Equal(t, 0, index)
	assert.Equal(t, int64(56), attempt.FinalGrade)
	assert.Equal(t, now, attempt.Timestamp)

	index, attempt = l.Append("anna.larsson", 70, 80, "resit", now+3600)
	assert.Equal(t, 1, index)
	assert.Equal(t, int64(76), attempt.FinalGrade)

	// another student starts from zero again
	index, _ = l.Append("bjorn.afzelius", 10, 20, "", now)
	assert.Equal(t, 0, index)

	assert.Equal(t, 2, l.Count("anna.larsson"))
	assert.Equal(t, 1, l.Count("bjorn.afzelius"))
	assert.Equal(t, 0, l.Count("not.enrolled"))
}

func TestLedgerHistoryIsPrefixExtended(t *testing.T) {
	l := New()

	l.Append("anna.larsson", 50, 60, "first", 100)
	before := l.History("anna.larsson")

	l.Append("anna.larsson", 70, 80, "second", 200)
	after := l.History("anna.larsson")

	require.Len(t, after, len(before)+1)
	for i, attempt := range before {
		assert.Equal(t, attempt, after[i], "existing entry %d must not change", i)
	}
}

func TestLedgerHistoryReturnsCopies(t *testing.T) {
	l := New()
	l.Append("anna.larsson", 50, 60, "original note", 100)

	history := l.History("anna.larsson")
	history[0].Note = "tampered"
	history[0].FinalGrade = 999

	fresh, ok := l.At("anna.larsson", 0)
	require.True(t, ok)
	assert.Equal(t, "original note", fresh.Note)
	assert.Equal(t, int64(56), fresh.FinalGrade)
}

func TestLedgerAtOutOfRange(t *testing.T) {
	l := New()
	l.Append("anna.larsson", 50, 60, "", 100)

	_, ok := l.At("anna.larsson", 1)
	assert.False(t, ok)
	_, ok = l.At("anna.larsson", -1)
	assert.False(t, ok)
	_, ok = l.At("unknown.student", 0)
	assert.False(t, ok)
}
