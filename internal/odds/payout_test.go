package odds

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayout(t *testing.T) {
	tests := []struct {
		name  string
		stake int64
		legs  []int64
		boost int64
		want  int64
	}{
		{"single 2.50", 100, []int64{250}, 0, 250},
		{"accumulator 2.00 x 3.00", 50, []int64{200, 300}, 0, 300},
		{"boost rounds down", 100, []int64{250}, 11500, 287},
		{"odd stake rounds down", 7, []int64{333}, 0, 23},
		{"all legs void pays stake", 40, nil, 0, 40},
		{"ten legs at max odds", 1000, []int64{800, 800, 800, 800, 800, 800, 800, 800, 800, 800}, 0, 1073741824000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Payout(tt.stake, tt.legs, tt.boost))
		})
	}
}

func TestTotalOdds(t *testing.T) {
	assert.Equal(t, int64(600), TotalOdds([]int64{200, 300}, 0))
	assert.Equal(t, int64(287), TotalOdds([]int64{250}, 11500))
	assert.Equal(t, int64(115), TotalOdds([]int64{105, 105, 105}, 0))
}
