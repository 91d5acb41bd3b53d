package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:30", want: 570},
		{in: "23:59", want: 1439},
		{in: "24:00", want: MinutesPerDay},
		{in: "24:01", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "9:30", wantErr: true},
		{in: "09-30", wantErr: true},
		{in: "+9:30", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestTimeOfDayJSON(t *testing.T) {
	var rule struct {
		Start TimeOfDay `json:"start_time"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"start_time":"14:15"}`), &rule))
	assert.Equal(t, 14, rule.Start.Hour())
	assert.Equal(t, 15, rule.Start.Minute())

	data, err := json.Marshal(rule)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start_time":"14:15"}`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`{"start_time":"25:00"}`), &rule))
}

func TestTimeOfDayOn(t *testing.T) {
	got := MustTimeOfDay("24:00").On(2030, time.March, 4, time.UTC)
	assert.Equal(t, time.Date(2030, time.March, 5, 0, 0, 0, 0, time.UTC), got)
}
