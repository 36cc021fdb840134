package snmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOIDCompare(t *testing.T) {
	tests := []struct {
		a, b OID
		want int
	}{
		{OID{1, 3, 6}, OID{1, 3, 6}, 0},
		{OID{1, 3, 6}, OID{1, 3, 7}, -1},
		{OID{1, 3, 7}, OID{1, 3, 6, 1}, 1},
		{OID{1, 3}, OID{1, 3, 0}, -1},
		{OID{1, 3, 0}, OID{1, 3}, 1},
		{nil, OID{}, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.a.Compare(tt.b), "%s vs %s", tt.a, tt.b)
		assert.Equal(t, tt.want == 0, tt.a.Equal(tt.b), "%s vs %s", tt.a, tt.b)
	}
}

func TestOIDHasPrefix(t *testing.T) {
	oid := OID{1, 3, 6, 1, 2, 1, 43}
	assert.True(t, oid.HasPrefix(OID{1, 3, 6, 1}))
	assert.True(t, oid.HasPrefix(oid))
	assert.True(t, oid.HasPrefix(nil))
	assert.False(t, oid.HasPrefix(OID{1, 3, 6, 2}))
	assert.False(t, OID{1, 3}.HasPrefix(OID{1, 3, 6}))
}
