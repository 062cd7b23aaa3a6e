package utils

import (
	"fmt"

	nanoid "github.com/jaevor/go-nanoid"

	"realtime-chat/models"
)

const roomCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewRoomCodeGenerator returns a generator of upper-case alphanumeric join
// codes of models.RoomCodeLength characters. The generator is safe for
// concurrent use.
func NewRoomCodeGenerator() (func() string, error) {
	gen, err := nanoid.CustomASCII(roomCodeAlphabet, models.RoomCodeLength)
	if err != nil {
		return nil, fmt.Errorf("room code generator: %w", err)
	}
	return gen, nil
}

// IsValidRoomCode checks length and alphabet of a join code.
func IsValidRoomCode(code string) bool {
	if len(code) != models.RoomCodeLength {
		return false
	}
	for _, c := range code {
		if !(c >= '0' && c <= '9') && !(c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}
