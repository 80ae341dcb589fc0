package domain

import "strconv"

// StageID is the compiled address of a node. Addresses are assigned in the
// enumeration order of the flow definition, so recompiling yields the same map.
type StageID int

// NoStage is returned when no stage applies.
const NoStage StageID = -1

func (s StageID) String() string {
	return strconv.Itoa(int(s))
}

// StagePtr is a small helper for building responses.
func StagePtr(s StageID) *StageID {
	return &s
}
