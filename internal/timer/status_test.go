package timer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidTransition(t *testing.T) {
	allowed := map[Status][]Status{
		Idle:      {Running, Idle},
		Running:   {Paused, Idle},
		Paused:    {Running, Idle},
		Completed: {Idle, Running},
	}

	for _, from := range Statuses {
		for _, to := range Statuses {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			t.Run(from.String()+"->"+to.String(), func(t *testing.T) {
				assert.Equal(t, want, IsValidTransition(from, to))
			})
		}
	}
}

func TestIsValidTransition_Examples(t *testing.T) {
	assert.True(t, IsValidTransition(Idle, Running))
	assert.False(t, IsValidTransition(Running, Running))
	assert.True(t, IsValidTransition(Completed, Running))
	assert.False(t, IsValidTransition(Completed, Completed))
	assert.False(t, IsValidTransition(Paused, Paused))
	assert.True(t, IsValidTransition(Idle, Idle))
}

func TestIsValidTransition_UnknownStatus(t *testing.T) {
	unknown := Status(42)
	for _, s := range Statuses {
		assert.False(t, IsValidTransition(unknown, s))
	}
	assert.False(t, IsValidTransition(Idle, unknown))
	assert.Nil(t, AllowedTransitions(unknown))
}

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("stopped")
	assert.Error(t, err)
	_, err = ParseStatus("Running")
	assert.Error(t, err)
}

func TestStatus_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Status Status `json:"status"`
	}{Paused})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"paused"}`, string(data))

	var decoded struct {
		Status Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"completed"}`), &decoded))
	assert.Equal(t, Completed, decoded.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"done"}`), &decoded))

	_, err = json.Marshal(Status(9))
	assert.Error(t, err)
	assert.Equal(t, "status(9)", Status(9).String())
}

func TestResetsWarnings(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{Idle, Running, true},
		{Completed, Running, true},
		{Paused, Running, false},
		{Running, Paused, false},
		{Running, Idle, true},
		{Paused, Idle, true},
		{Completed, Idle, true},
		{Idle, Idle, true},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ResetsWarnings(tt.from, tt.to))
		})
	}
}

func TestTriggeredAfterTransition(t *testing.T) {
	triggered := NewTriggeredWarnings(300)

	kept := TriggeredAfterTransition(Paused, Running, triggered)
	assert.True(t, kept.Has(300))

	cleared := TriggeredAfterTransition(Completed, Running, triggered)
	assert.Equal(t, 0, cleared.Len())

	// The input set is untouched.
	assert.True(t, triggered.Has(300))
}
