package availability

import (
	"sort"
	"time"
)

// DateLayout es el formato de fecha en el API (día calendario).
const DateLayout = "2006-01-02"

// Entry es un día publicado por el vet con sus slots, en orden de publicación.
type Entry struct {
	Date  time.Time
	Slots []string
}

// Exception ajusta un día puntual sobre lo publicado:
// - IsAvailable=false sin slots: cierra el día
// - IsAvailable=false con slots: retira esos slots
// - IsAvailable=true con slots: el día ofrece exactamente esos slots
type Exception struct {
	Date        time.Time
	IsAvailable bool
	Slots       []string
}

// Availability pertenece a un único vet y se reemplaza entera en cada publicación.
type Availability struct {
	VetID      string
	Entries    []Entry
	Exceptions []Exception
	UpdatedAt  time.Time
}

// Day normaliza a día calendario (medianoche UTC).
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// Offered devuelve los slots efectivos de un día luego de aplicar excepciones.
func (a Availability) Offered(date time.Time) []string {
	date = Day(date)

	var base []string
	for _, e := range a.Entries {
		if Day(e.Date).Equal(date) {
			base = e.Slots
			break
		}
	}

	for _, ex := range a.Exceptions {
		if !Day(ex.Date).Equal(date) {
			continue
		}
		switch {
		case ex.IsAvailable:
			base = ex.Slots
		case len(ex.Slots) == 0:
			base = nil
		default:
			base = without(base, ex.Slots)
		}
		break
	}

	if len(base) == 0 {
		return nil
	}
	out := make([]string, len(base))
	copy(out, base)
	return out
}

// Offers es el chequeo que usa el booking antes del claim.
func (a Availability) Offers(date time.Time, slot string) bool {
	for _, s := range a.Offered(date) {
		if s == slot {
			return true
		}
	}
	return false
}

// Days lista los días con slots efectivos desde from (inclusive), ascendente.
func (a Availability) Days(from time.Time) []Entry {
	from = Day(from)

	seen := make(map[time.Time]struct{})
	dates := make([]time.Time, 0, len(a.Entries)+len(a.Exceptions))
	add := func(d time.Time) {
		d = Day(d)
		if d.Before(from) {
			return
		}
		if _, ok := seen[d]; ok {
			return
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	for _, e := range a.Entries {
		add(e.Date)
	}
	for _, ex := range a.Exceptions {
		if ex.IsAvailable {
			add(ex.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]Entry, 0, len(dates))
	for _, d := range dates {
		slots := a.Offered(d)
		if len(slots) == 0 {
			continue
		}
		out = append(out, Entry{Date: d, Slots: slots})
	}
	return out
}

func without(base, drop []string) []string {
	if len(drop) == 0 {
		return base
	}
	skip := make(map[string]struct{}, len(drop))
	for _, s := range drop {
		skip[s] = struct{}{}
	}
	out := make([]string, 0, len(base))
	for _, s := range base {
		if _, ok := skip[s]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}
