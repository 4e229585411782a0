// Package activity reports what the companion persona is nominally doing
// right now. The context injection step reads it at the start of every turn
// so replies can reference the persona's day.
package activity

import "time"

// Slot is one scheduled block within a day. StartHour is inclusive, EndHour
// exclusive, both in 24h local time.
type Slot struct {
	StartHour int
	EndHour   int
	Activity  string
}

// ScheduleProvider maps the current wall clock onto a weekly schedule.
type ScheduleProvider struct {
	week map[time.Weekday][]Slot
	now  func() time.Time
}

// NewScheduleProvider builds a provider over the given weekly schedule.
// A nil schedule falls back to DefaultWeek.
func NewScheduleProvider(week map[time.Weekday][]Slot) *ScheduleProvider {
	if week == nil {
		week = DefaultWeek()
	}
	return &ScheduleProvider{week: week, now: time.Now}
}

// CurrentActivity returns the activity for the current time, or "" when no
// slot covers it.
func (p *ScheduleProvider) CurrentActivity() string {
	t := p.now()
	for _, slot := range p.week[t.Weekday()] {
		h := t.Hour()
		if h >= slot.StartHour && h < slot.EndHour {
			return slot.Activity
		}
	}
	return ""
}

// DefaultWeek is the persona's built-in routine. Weekday mornings are work
// sessions, evenings rotate hobbies, weekends are unstructured.
func DefaultWeek() map[time.Weekday][]Slot {
	workday := []Slot{
		{7, 9, "going for a morning run along the river"},
		{9, 13, "deep in a machine learning research session"},
		{13, 14, "having lunch at the corner cafe"},
		{14, 18, "pair-programming on an open source project"},
		{19, 21, "cooking dinner and listening to jazz"},
		{21, 23, "reading science fiction"},
	}
	return map[time.Weekday][]Slot{
		time.Monday:    workday,
		time.Tuesday:   workday,
		time.Wednesday: workday,
		time.Thursday:  workday,
		time.Friday: []Slot{
			{7, 9, "going for a morning run along the river"},
			{9, 13, "deep in a machine learning research session"},
			{13, 14, "having lunch at the corner cafe"},
			{14, 18, "pair-programming on an open source project"},
			{19, 23, "out at a live music venue with friends"},
		},
		time.Saturday: []Slot{
			{9, 12, "hiking in the hills outside the city"},
			{12, 14, "browsing a weekend market"},
			{15, 18, "painting in the studio"},
			{19, 22, "hosting a board game night"},
		},
		time.Sunday: []Slot{
			{9, 11, "having a slow breakfast and reading the paper"},
			{11, 14, "experimenting with a new recipe"},
			{15, 18, "walking in the park"},
			{19, 22, "planning the week ahead"},
		},
	}
}

// StaticProvider always reports the same activity. Useful in tests and when
// running without a persona schedule.
type StaticProvider struct {
	Activity string
}

func (p StaticProvider) CurrentActivity() string {
	return p.Activity
}
