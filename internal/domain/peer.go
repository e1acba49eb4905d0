// Package domain holds the core types of the techlink relay.
// A Peer is one live connection: a customer looking for help or a
// technician offering it.
package domain

// Role distinguishes the two kinds of peers. The wire values match the
// original client protocol ("user" for customers).
type Role string

const (
	RoleCustomer   Role = "user"
	RoleTechnician Role = "technician"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleTechnician
}

// Coordinate is a last-known geographic position reported by a peer.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Peer is the registry record for one live connection. ConnID is the
// transport-assigned connection identity and never goes on the wire;
// UserID is the caller-supplied application identity used for routing.
type Peer struct {
	ConnID    string      `json:"-"`
	UserID    string      `json:"userId"`
	Role      Role        `json:"role"`
	Location  *Coordinate `json:"location"`
	Available bool        `json:"available"`
}
