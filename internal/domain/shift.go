package domain

// Shift is a work shift opened with a photo at a dealership.
type Shift struct {
	ID           int64       `json:"id"`
	UserID       int64       `json:"user_id"`
	User         *User       `json:"user,omitempty"`
	DealershipID int64       `json:"dealership_id"`
	Dealership   *Dealership `json:"dealership,omitempty"`
	Status       string      `json:"status"`
	ShiftStart   string      `json:"shift_start"`
	ShiftEnd     string      `json:"shift_end"`
	LateMinutes  int         `json:"late_minutes"`
}

// IsLate reports whether the shift was opened after its scheduled start.
func (s *Shift) IsLate() bool {
	return s.LateMinutes > 0
}
