package convert

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampUint32(t *testing.T) {
	tests := []struct {
		name  string
		v     int
		floor uint32
		want  uint32
	}{
		{"in range", 5, 1, 5},
		{"zero raised to floor", 0, 1, 1},
		{"negative raised to floor", -3, 1, 1},
		{"floor zero", 0, 0, 0},
		{"capped", math.MaxInt64, 1, math.MaxUint32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampUint32(tt.v, tt.floor))
		})
	}
}
