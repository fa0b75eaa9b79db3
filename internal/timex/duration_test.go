package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"string seconds", `"2s"`, 2 * time.Second, false},
		{"string millis", `"150ms"`, 150 * time.Millisecond, false},
		{"nanoseconds number", `1000000`, time.Millisecond, false},
		{"bad string", `"soon"`, 0, true},
		{"bool", `true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{2 * time.Second})
	require.NoError(t, err)
	assert.JSONEq(t, `"2s"`, string(b))
}
