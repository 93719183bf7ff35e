package slot

import (
	"time"

	"github.com/jwalitptl/booking-api/internal/model"
)

// Slice cuts the template window into consecutive slots of the template's
// duration on the given date. A trailing remainder shorter than one duration
// is dropped. Invalid templates produce nothing.
func Slice(tpl *model.SlotTemplate, date time.Time) []*model.Slot {
	if !tpl.Valid() {
		return nil
	}
	date = model.DateOf(date)

	var slots []*model.Slot
	for cursor := tpl.StartTime; cursor.Add(tpl.SlotDurationMinutes) <= tpl.EndTime; cursor = cursor.Add(tpl.SlotDurationMinutes) {
		slots = append(slots, &model.Slot{
			ClinicianID: tpl.ClinicianID,
			Date:        date,
			StartTime:   cursor,
			EndTime:     cursor.Add(tpl.SlotDurationMinutes),
			Available:   true,
		})
	}
	return slots
}
