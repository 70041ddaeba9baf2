package timer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateWarningThresholds(t *testing.T) {
	both := WarningConfig{WarningAt2Min: true, WarningAt5Min: true}

	tests := []struct {
		name  string
		total int
		cfg   WarningConfig
		want  Thresholds
	}{
		{"long timer both warnings", 600, both, Thresholds{120, 300}},
		{"equal to two minutes", 120, both, Thresholds{}},
		{"shorter than two minutes", 100, both, Thresholds{}},
		{"just over two minutes", 121, both, Thresholds{120}},
		{"equal to five minutes", 300, both, Thresholds{120}},
		{"just over five minutes", 301, both, Thresholds{120, 300}},
		{"only five minute warning", 600, WarningConfig{WarningAt5Min: true}, Thresholds{300}},
		{"only two minute warning", 600, WarningConfig{WarningAt2Min: true}, Thresholds{120}},
		{"warnings disabled", 600, WarningConfig{}, Thresholds{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateWarningThresholds(tt.total, tt.cfg))
		})
	}
}

func TestIsInWarningZone(t *testing.T) {
	th := Thresholds{120, 300}

	assert.True(t, IsInWarningZone(120, th))
	assert.True(t, IsInWarningZone(0, th))
	assert.True(t, IsInWarningZone(300, th))
	// Any threshold counts, so 150 is inside the five minute zone even though
	// it has not reached the two minute one. Only the larger threshold decides.
	assert.True(t, IsInWarningZone(150, th))
	assert.False(t, IsInWarningZone(150, Thresholds{120}))
	assert.False(t, IsInWarningZone(301, th))
	assert.False(t, IsInWarningZone(0, Thresholds{}))
	assert.False(t, IsInWarningZone(0, nil))
}

func TestTriggeredWarnings_Immutable(t *testing.T) {
	var empty TriggeredWarnings
	assert.Equal(t, 0, empty.Len())
	assert.False(t, HasWarningBeenTriggered(120, empty))

	one := empty.With(300)
	assert.Equal(t, 0, empty.Len())
	assert.True(t, HasWarningBeenTriggered(300, one))

	two := one.With(120, 300)
	assert.Equal(t, 1, one.Len())
	assert.Equal(t, []int{120, 300}, two.Values())

	assert.Equal(t, one, one.With())
}

func TestTriggeredWarnings_JSON(t *testing.T) {
	data, err := json.Marshal(NewTriggeredWarnings(300, 120))
	require.NoError(t, err)
	assert.Equal(t, "[120,300]", string(data))

	var tw TriggeredWarnings
	require.NoError(t, json.Unmarshal([]byte("[300]"), &tw))
	assert.True(t, tw.Has(300))

	data, err = json.Marshal(TriggeredWarnings{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestEvaluateTick_FiresOncePerThreshold(t *testing.T) {
	th := CalculateWarningThresholds(600, WarningConfig{WarningAt2Min: true, WarningAt5Min: true})
	var triggered TriggeredWarnings

	var fired []int
	for remaining := 600; remaining >= 0; remaining-- {
		var d TickDecision
		d, triggered = EvaluateTick(remaining, th, triggered)
		fired = append(fired, d.Fired...)
		assert.Equal(t, remaining == 0, d.Completed)
		assert.Equal(t, remaining <= 300, d.InWarningZone)
	}

	assert.Equal(t, []int{300, 120}, fired)
	assert.Equal(t, []int{120, 300}, triggered.Values())
}

func TestEvaluateTick_CrossesSeveralAtOnce(t *testing.T) {
	th := Thresholds{120, 300}
	before := NewTriggeredWarnings()

	d, after := EvaluateTick(60, th, before)

	assert.True(t, d.ShouldWarn())
	assert.Equal(t, []int{120, 300}, d.Fired)
	assert.Equal(t, 0, before.Len())
	assert.Equal(t, 2, after.Len())
}

func TestEvaluateTick_OutsideZone(t *testing.T) {
	d, after := EvaluateTick(400, Thresholds{120, 300}, TriggeredWarnings{})

	assert.False(t, d.ShouldWarn())
	assert.False(t, d.InWarningZone)
	assert.False(t, d.Completed)
	assert.Empty(t, d.Fired)
	assert.Equal(t, 0, after.Len())
}
