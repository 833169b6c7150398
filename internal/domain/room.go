package domain

type RoomName string

const MaxRoomNameLen = 64

// ConnID identifies one live signaling connection. A user reconnecting gets a
// fresh ConnID; all media resources are keyed by it.
type ConnID string
