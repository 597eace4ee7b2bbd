package recurrence_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"done/backend/recurrence"
)

// fromMask builds a recurrence where bit i of mask enables recurrence.Days[i].
func fromMask(mask int) recurrence.Recurrence {
	var r recurrence.Recurrence
	for i, d := range recurrence.Days {
		if mask&(1<<i) != 0 {
			r.Set(d, true)
		}
	}
	return r
}

type weekdaySet []time.Weekday

func (w weekdaySet) Weekdays() []time.Weekday { return w }

func TestFromStringLiteral(t *testing.T) {
	r := recurrence.FromString("Mon, Wed, Fri")

	assert.Equal(t, recurrence.Recurrence{Monday: true, Wednesday: true, Friday: true}, r)
	assert.Equal(t, "Mon, Wed, Fri", r.String())
}

func TestRoundTripAllSubsets(t *testing.T) {
	for mask := 0; mask < 1<<7; mask++ {
		r := fromMask(mask)
		assert.Equal(t, r, recurrence.FromString(r.String()), "mask %07b", mask)
	}
}

func TestEmptyRecurrence(t *testing.T) {
	var r recurrence.Recurrence

	assert.True(t, r.IsEmpty())
	assert.Equal(t, "", r.String())
	assert.Empty(t, r.Weekdays())
	assert.Equal(t, r, recurrence.FromString(""))
}

func TestFromStringIgnoresSeparatorsCaseAndOrder(t *testing.T) {
	tests := []struct {
		in   string
		want recurrence.Recurrence
	}{
		{"sun;MON", recurrence.Recurrence{Monday: true, Sunday: true}},
		{"every Tuesday and saturday", recurrence.Recurrence{Tuesday: true, Saturday: true}},
		{"Fri Thu Wed", recurrence.Recurrence{Wednesday: true, Thursday: true, Friday: true}},
		{"weekly, nothing else", recurrence.Recurrence{}},
		{"thumbs up", recurrence.Recurrence{Thursday: true}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, recurrence.FromString(tt.in))
		})
	}
}

func TestFromPatternAllSubsets(t *testing.T) {
	all := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	for mask := 0; mask < 1<<7; mask++ {
		var set weekdaySet
		for i, w := range all {
			if mask&(1<<i) != 0 {
				set = append(set, w)
			}
		}

		r := recurrence.FromPattern(set)

		assert.Equal(t, fromMask(mask), r, "mask %07b", mask)
		assert.ElementsMatch(t, []time.Weekday(set), r.Weekdays(), "mask %07b", mask)
	}
}

func TestFromPatternNil(t *testing.T) {
	assert.True(t, recurrence.FromPattern(nil).IsEmpty())
}

func TestDayWeekdayConversion(t *testing.T) {
	for _, d := range recurrence.Days {
		assert.Equal(t, d, recurrence.DayFromWeekday(d.Weekday()))
	}
	assert.Equal(t, time.Sunday, recurrence.Sunday.Weekday())
	assert.Equal(t, time.Monday, recurrence.Monday.Weekday())
	assert.Equal(t, "", recurrence.Day(9).String())
}

func TestTextMarshaling(t *testing.T) {
	r := recurrence.FromWeekdays(time.Saturday, time.Sunday)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `"Sat, Sun"`, string(data))

	var decoded recurrence.Recurrence
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, r, decoded)
}
