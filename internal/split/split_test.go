package split

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualSplitConservation(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		n      int
	}{
		{"even split", 30000, 2},
		{"single debtor", 30000, 1},
		{"one centavo", 1, 1},
		{"one centavo many debtors", 1, 23},
		{"prime amount", 9973, 7},
		{"max participants", 100001, 23},
		{"large amount", 123456789, 11},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			shares, err := Equal{}.Split(tc.amount, tc.n)
			require.NoError(t, err)
			require.Len(t, shares, tc.n)
			var sum int64
			for _, s := range shares {
				sum += s
			}
			assert.Equal(t, tc.amount, sum, "shares must sum to the expense amount")
		})
	}
}

func TestEqualSplitRemainderGoesToFirst(t *testing.T) {
	shares, err := Equal{}.Split(100, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{34, 33, 33}, shares)

	shares, err = Equal{}.Split(1, 23)
	require.NoError(t, err)
	assert.Equal(t, int64(1), shares[0])
	for _, s := range shares[1:] {
		assert.Zero(t, s)
	}
}

func TestEqualSplitNoParticipants(t *testing.T) {
	_, err := Equal{}.Split(100, 0)
	assert.ErrorIs(t, err, ErrNoParticipants)
}
