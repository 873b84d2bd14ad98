package domain

// User is a backend user as returned by listing endpoints.
type User struct {
	ID           int64        `json:"id"`
	Login        string       `json:"login"`
	FullName     string       `json:"full_name"`
	Role         string       `json:"role"`
	DealershipID int64        `json:"dealership_id"`
	Dealership   *Dealership  `json:"dealership,omitempty"`
	Dealerships  []Dealership `json:"dealerships,omitempty"`
}

// Dealership is a location a shift can be opened at.
type Dealership struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// WorkDealerships returns the primary dealership followed by any extra
// ones, without duplicates.
func (u *User) WorkDealerships() []Dealership {
	var out []Dealership
	seen := make(map[int64]bool)
	add := func(d Dealership) {
		if d.ID == 0 || seen[d.ID] {
			return
		}
		seen[d.ID] = true
		out = append(out, d)
	}

	if u.Dealership != nil {
		add(*u.Dealership)
	} else if u.DealershipID != 0 {
		add(Dealership{ID: u.DealershipID})
	}
	for _, d := range u.Dealerships {
		add(d)
	}
	return out
}

// DisplayName falls back to the login when no full name is set.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Login
}
