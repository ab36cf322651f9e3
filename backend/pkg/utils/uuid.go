package utils

import "github.com/google/uuid"

func NewUUID() string {
	if uuid, err := uuid.NewV7(); err == nil {
		return uuid.String()
	}
	panic("failed to generate UUID")
}

// ShortID returns the first block of a random UUID, used to make MQTT client ids unique per process.
func ShortID() string {
	return uuid.New().String()[:8]
}
