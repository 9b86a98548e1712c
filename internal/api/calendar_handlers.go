package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/therapy-scheduling/internal/calendar"
)

const maxFreeSlotDays = 31

// queryDate reads a YYYY-MM-DD parameter, defaulting to today.
func (h *handlers) queryDate(r *http.Request, key string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return calendar.StartOfDay(h.svc.Now()), nil
	}
	return calendar.ParseDate(raw, h.svc.Location())
}

func (h *handlers) week(w http.ResponseWriter, r *http.Request) {
	date, err := h.queryDate(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	p := principal(r)
	view := h.svc.WeekView(date, p.ResolveTherapist(r.URL.Query().Get("therapist")))

	resp := WeekResponse{
		Start:       calendar.FormatDateLocal(view.Start),
		ISOWeek:     view.ISOWeek,
		TherapistID: view.TherapistID,
		Days:        make([]DayResponse, 0, len(view.Days)),
	}
	for _, d := range view.Days {
		resp.Days = append(resp.Days, DayResponse{
			Date:         d.Date,
			Appointments: toAppointmentResponses(d.Appointments, p),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) daySlots(w http.ResponseWriter, r *http.Request) {
	day, err := h.queryDate(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	therapist := bookingTherapist(r.URL.Query().Get("therapist"), principal(r).TherapistID)
	slots := h.svc.DaySlots(day, therapist)

	resp := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, SlotResponse{
			Start:    calendar.FormatLocal(s.Start),
			Free:     s.Free,
			BusyWith: s.BusyWith,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) checkSlot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	at, err := calendar.ParseLocal(q.Get("at"), h.svc.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "at must be YYYY-MM-DDTHH:mm")
		return
	}

	exclude := uuid.Nil
	if raw := q.Get("exclude"); raw != "" {
		if exclude, err = uuid.Parse(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "exclude must be a valid UUID")
			return
		}
	}

	p := principal(r)
	conflict := h.svc.CheckSlot(at, exclude, bookingTherapist(q.Get("therapist"), p.TherapistID))

	resp := CheckSlotResponse{Free: conflict == nil}
	if conflict != nil {
		c := toAppointmentResponse(*conflict, p)
		resp.ConflictWith = &c
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) freeSlots(w http.ResponseWriter, r *http.Request) {
	from, err := h.queryDate(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "from must be YYYY-MM-DD")
		return
	}

	days := queryInt(r.URL.Query().Get("days"), 7)
	if days < 1 {
		days = 1
	}
	if days > maxFreeSlotDays {
		days = maxFreeSlotDays
	}

	therapist := bookingTherapist(r.URL.Query().Get("therapist"), principal(r).TherapistID)
	free := h.svc.FreeSlotsFrom(from, days, therapist)

	resp := make([]string, 0, len(free))
	for _, f := range free {
		resp = append(resp, calendar.FormatLocal(f))
	}
	writeJSON(w, http.StatusOK, resp)
}
