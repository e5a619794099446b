package models

type Barber struct {
	BarberID  string `json:"barber_id"`
	ShopID    string `json:"shop_id"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
	IsPresent bool   `json:"is_present"`
}

// Available reports assignment eligibility: employed and on shift.
func (b Barber) Available() bool {
	return b.IsActive && b.IsPresent
}
