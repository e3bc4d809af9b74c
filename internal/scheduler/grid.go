package scheduler

import (
	"strconv"
	"strings"
)

// Day is a teaching weekday.
type Day string

const (
	Monday    Day = "Monday"
	Tuesday   Day = "Tuesday"
	Wednesday Day = "Wednesday"
	Thursday  Day = "Thursday"
	Friday    Day = "Friday"
)

// LunchSlot is never assignable on any day.
const LunchSlot = "12:00"

// Days lists the weekly grid rows in order.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday}

// TimeSlots lists the hourly marks of a teaching day, lunch included.
var TimeSlots = []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"}

// canonicalLabStarts are the late-afternoon pair starts used when a lab has no preference.
var canonicalLabStarts = []string{"14:00", "15:00"}

// Cell is a single (day, time) coordinate of the weekly grid.
type Cell struct {
	Day  Day    `json:"day" yaml:"day"`
	Time string `json:"time" yaml:"time"`
}

// String renders the cell as "Monday 09:00".
func (c Cell) String() string {
	return string(c.Day) + " " + c.Time
}

// Valid reports whether the cell lies on the grid.
func (c Cell) Valid() bool {
	return dayIndex(c.Day) >= 0 && slotIndex(c.Time) >= 0
}

// IsLunch reports whether the time is the reserved lunch mark.
func IsLunch(t string) bool {
	return t == LunchSlot
}

// NextSlot returns the chronologically next mark of the day.
func NextSlot(t string) (string, bool) {
	idx := slotIndex(t)
	if idx < 0 || idx+1 >= len(TimeSlots) {
		return "", false
	}
	return TimeSlots[idx+1], true
}

// SchedulableCells returns every non-lunch cell in day-major, then time order.
func SchedulableCells() []Cell {
	cells := make([]Cell, 0, len(Days)*(len(TimeSlots)-1))
	for _, day := range Days {
		for _, t := range TimeSlots {
			if IsLunch(t) {
				continue
			}
			cells = append(cells, Cell{Day: day, Time: t})
		}
	}
	return cells
}

// ParseDay accepts full or abbreviated weekday names in any case.
func ParseDay(raw string) (Day, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if len(raw) < 3 {
		return "", false
	}
	for _, day := range Days {
		name := strings.ToLower(string(day))
		if raw == name || raw == name[:3] {
			return day, true
		}
	}
	return "", false
}

// NormalizeTime converts "9", "9:00" or "09:00" into a grid mark.
func NormalizeTime(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	hour := raw
	if idx := strings.Index(raw, ":"); idx >= 0 {
		hour = raw[:idx]
		if minutes := raw[idx+1:]; minutes != "00" {
			return "", false
		}
	}
	h, err := strconv.Atoi(hour)
	if err != nil {
		return "", false
	}
	mark := strconv.Itoa(h) + ":00"
	if h < 10 {
		mark = "0" + mark
	}
	if slotIndex(mark) < 0 {
		return "", false
	}
	return mark, true
}

func dayIndex(d Day) int {
	for i, day := range Days {
		if day == d {
			return i
		}
	}
	return -1
}

func slotIndex(t string) int {
	for i, mark := range TimeSlots {
		if mark == t {
			return i
		}
	}
	return -1
}

func cellLess(a, b Cell) bool {
	if a.Day != b.Day {
		return dayIndex(a.Day) < dayIndex(b.Day)
	}
	return slotIndex(a.Time) < slotIndex(b.Time)
}
