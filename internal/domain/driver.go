package domain

import "time"

// Driver represents a driver in the system. Position is meaningless
// until the first location update; HasPosition guards against matching
// a driver that never reported one.
type Driver struct {
	ID                string
	Name              string
	Phone             string
	Lat               float64
	Lng               float64
	IsAvailable       bool
	LocationUpdatedAt time.Time // zero until first update
	CreatedAt         time.Time
}

// HasPosition reports whether the driver has reported a location.
func (d *Driver) HasPosition() bool {
	return !d.LocationUpdatedAt.IsZero()
}
