package proto

type Role string

const (
	Initiator Role = "initiator"
	Capture   Role = "capture"
)

// ParseRole maps wire role names, including the older viewer/phone names,
// onto a Role.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "initiator", "viewer":
		return Initiator, true
	case "capture", "phone":
		return Capture, true
	}
	return "", false
}

// Other returns the role a connection in r is paired with.
func (r Role) Other() Role {
	switch r {
	case Initiator:
		return Capture
	case Capture:
		return Initiator
	}
	return ""
}

func (r Role) String() string {
	return string(r)
}
