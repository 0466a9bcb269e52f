package rowlock

import "github.com/google/uuid"

// generateToken creates a unique, time-ordered token for one lock attempt.
//
// UUIDv7 encodes a millisecond timestamp in the high bits followed by 74
// bits of entropy: tokens never collide across concurrent generators on any
// host, and later tokens sort lexicographically after earlier ones so the
// prefix range scan stays readable for debugging. Only the uniqueness is a
// correctness requirement; the sort order is a convenience.
func generateToken() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
