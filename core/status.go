package core

// Status is the one-byte result of every flash operation, sent back to the
// host in the reply to the request
type Status uint8

const (
	StatusOK             Status = 0
	StatusInvalidSector  Status = 1
	StatusInvalidAddress Status = 2
	StatusInvalidRange   Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidSector:
		return "invalid_sector"
	case StatusInvalidAddress:
		return "invalid_address"
	case StatusInvalidRange:
		return "invalid_range"
	default:
		return "status_" + utoa(uint32(s))
	}
}
