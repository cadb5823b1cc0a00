package worktime

import "time"

// =============================================================================
// PUNCH - One clock-in/clock-out cycle
// =============================================================================

// Punch is one in/out cycle within a day. The derived fields are a cache of
// what the aggregator computed when the punch was last written; readers
// recompute them and only fall back to DurationInMinutes when a time is
// missing.
type Punch struct {
	InTime      TimeOfDay  `json:"inTime"`
	OutTime     *TimeOfDay `json:"outTime,omitempty"`
	InPhotoURL  string     `json:"inPhotoUrl,omitempty"`
	OutPhotoURL string     `json:"outPhotoUrl,omitempty"`

	DurationInMinutes *int `json:"durationInMinutes,omitempty"`
	LateMinutes       int  `json:"lateMinutes"`
	LateMark          bool `json:"lateMark"`
	OvertimeMinutes   int  `json:"overtimeMinutes"`
	OvertimeMark      bool `json:"overtimeMark"`
}

// IsOpen reports whether the punch still waits for a punch-out.
func (p Punch) IsOpen() bool { return p.OutTime == nil }

// =============================================================================
// ATTENDANCE DAY - All punches of one user on one date
// =============================================================================

// AttendanceDay is the record for a (user, date) pair. Punches are kept in
// insertion order; only the last one may be open.
type AttendanceDay struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	Date      Date      `json:"date"`
	Punches   []Punch   `json:"punches"`
	Version   int       `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewAttendanceDay starts an empty record for userID on date.
func NewAttendanceDay(userID string, date Date) AttendanceDay {
	return AttendanceDay{UserID: userID, Date: date, Punches: []Punch{}}
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (d AttendanceDay) Clone() AttendanceDay {
	out := d
	out.Punches = make([]Punch, len(d.Punches))
	for i, p := range d.Punches {
		if p.OutTime != nil {
			t := *p.OutTime
			p.OutTime = &t
		}
		if p.DurationInMinutes != nil {
			n := *p.DurationInMinutes
			p.DurationInMinutes = &n
		}
		out.Punches[i] = p
	}
	return out
}

// LastPunch returns the most recent punch, or nil for an empty day.
func (d *AttendanceDay) LastPunch() *Punch {
	if len(d.Punches) == 0 {
		return nil
	}
	return &d.Punches[len(d.Punches)-1]
}

// HasOpenPunch reports whether the last punch is still open.
func (d *AttendanceDay) HasOpenPunch() bool {
	last := d.LastPunch()
	return last != nil && last.IsOpen()
}

// PunchIn opens a new punch at the given time. It fails when the previous
// punch has not been closed or when no photo reference was supplied.
func (d *AttendanceDay) PunchIn(at TimeOfDay, photoRef string) error {
	if photoRef == "" {
		return &MissingEvidenceError{Action: "punch-in"}
	}
	if last := d.LastPunch(); last != nil && last.IsOpen() {
		return &DuplicateOpenPunchError{UserID: d.UserID, Date: d.Date, OpenSince: last.InTime}
	}
	d.Punches = append(d.Punches, Punch{InTime: at, InPhotoURL: photoRef})
	return nil
}

// PunchOut closes the open punch at the given time.
func (d *AttendanceDay) PunchOut(at TimeOfDay, photoRef string) error {
	if photoRef == "" {
		return &MissingEvidenceError{Action: "punch-out"}
	}
	last := d.LastPunch()
	if last == nil || !last.IsOpen() {
		return &NoOpenPunchError{UserID: d.UserID, Date: d.Date, NoRecord: len(d.Punches) == 0}
	}
	out := at
	last.OutTime = &out
	last.OutPhotoURL = photoRef
	return nil
}

// EditPunch replaces the in and/or out time of the punch at index. A nil
// time keeps the current value. Setting an out time on an open punch closes
// it; only the last punch can be open, so this keeps the day consistent.
func (d *AttendanceDay) EditPunch(index int, in, out *TimeOfDay) error {
	if index < 0 || index >= len(d.Punches) {
		return &InvalidPunchIndexError{Index: index, Count: len(d.Punches)}
	}
	p := &d.Punches[index]
	if in != nil {
		p.InTime = *in
	}
	if out != nil {
		t := *out
		p.OutTime = &t
	}
	return nil
}
