package scheduler

import (
	"strings"

	"go.uber.org/zap"
)

// RelaxationProfile is one room-selection policy for lab placement.
type RelaxationProfile int

const (
	// ProfileStrict only admits lab rooms of the course's department that accept its year.
	ProfileStrict RelaxationProfile = iota
	// ProfileAnyLabRoom admits any available lab room.
	ProfileAnyLabRoom
)

// LabRelaxation is the order in which lab placement relaxes room selection.
var LabRelaxation = []RelaxationProfile{ProfileStrict, ProfileAnyLabRoom}

func (p RelaxationProfile) String() string {
	switch p {
	case ProfileStrict:
		return "strict"
	case ProfileAnyLabRoom:
		return "any-lab-room"
	default:
		return "unknown"
	}
}

func (p RelaxationProfile) admits(course *Course, room *Room) bool {
	if room.Type != RoomLab || !room.Available {
		return false
	}
	if course.Capacity > 0 && room.Capacity < course.Capacity {
		return false
	}
	if p == ProfileStrict {
		if room.Department != "" && course.Branch != "" && !strings.EqualFold(room.Department, course.Branch) {
			return false
		}
		if !room.AllowsYear(course.Year) {
			return false
		}
	}
	return true
}

// labStartTimes returns the ordered candidate start marks for a lab.
func labStartTimes(course *Course) []string {
	if len(course.PreferredSlots) == 0 {
		return canonicalLabStarts
	}
	seen := make(map[string]bool, len(course.PreferredSlots))
	starts := make([]string, 0, len(course.PreferredSlots))
	for _, raw := range course.PreferredSlots {
		t, ok := NormalizeTime(raw)
		if !ok || seen[t] {
			continue
		}
		seen[t] = true
		starts = append(starts, t)
	}
	return starts
}

func (b *builder) placeLabs(labs []*Course) {
	for _, course := range labs {
		reason := b.placeLab(course)
		if reason == ReasonNone {
			continue
		}
		b.unplaced = append(b.unplaced, course.ID)
		b.warnings = append(b.warnings, Warning{Kind: WarningLabUnplaced, CourseID: course.ID, Reason: reason})
		b.logger.Debug("lab unplaced", zap.String("course", course.ID), zap.String("reason", string(reason)))
	}
}

// placeLab sweeps every profile in order and commits the first pair of
// cells the Validator accepts as a whole.
func (b *builder) placeLab(course *Course) RejectReason {
	starts := labStartTimes(course)
	days := b.shuffledDays()
	instructor := b.instructors[course.InstructorID]
	last := ReasonNoContiguousPair

	for _, profile := range LabRelaxation {
		if profile != ProfileStrict && b.expired() {
			return ReasonBudgetExhausted
		}
		var rooms []*Room
		for _, room := range b.rooms {
			if profile.admits(course, room) {
				rooms = append(rooms, room)
			}
		}
		if len(rooms) == 0 {
			last = ReasonNoCompatibleRoom
			continue
		}

		for _, day := range days {
			for _, start := range starts {
				next, ok := NextSlot(start)
				if !ok || IsLunch(start) || IsLunch(next) {
					continue
				}
				first := Cell{Day: day, Time: start}
				second := Cell{Day: day, Time: next}
				if b.occupied[first] || b.occupied[second] {
					continue
				}
				for _, room := range rooms {
					pair := []Candidate{
						{Course: course, Instructor: instructor, Room: room, Cell: first, LabPosition: LabFirst},
						{Course: course, Instructor: instructor, Room: room, Cell: second, LabPosition: LabSecond},
					}
					decision := TryPlaceAll(pair, b.slots, b.rc, b.opts)
					if decision.Accepted {
						b.commit(pair...)
						b.logger.Debug("lab placed",
							zap.String("course", course.ID),
							zap.String("cell", first.String()),
							zap.String("room", room.ID),
							zap.String("profile", profile.String()),
						)
						return ReasonNone
					}
					last = decision.Reason
				}
			}
		}
	}
	return last
}
