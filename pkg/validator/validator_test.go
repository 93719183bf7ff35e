package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type window struct {
	Day      int `json:"day_of_week" validate:"weekday"`
	Start    int `json:"start_time" validate:"timeofday"`
	End      int `json:"end_time" validate:"timeofday,gtfield=Start"`
	Duration int `json:"slot_duration_minutes" validate:"min=5"`
}

func TestValidate(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(window{Day: 1, Start: 540, End: 600, Duration: 20}))

	err := v.Validate(window{Day: 9, Start: 600, End: 540, Duration: 2})
	require.Error(t, err)
	var errs Errors
	require.ErrorAs(t, err, &errs)

	fields := map[string]string{}
	for _, fe := range errs {
		fields[fe.Field] = fe.Message
	}
	assert.Equal(t, "must be a day of the week", fields["day_of_week"])
	assert.Equal(t, "must be after Start", fields["end_time"])
	assert.Equal(t, "must be at least 5", fields["slot_duration_minutes"])
}
