package booking

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// newTicketNumber returns a human-readable ticket number.  The random
// suffix keeps two bookings in the same millisecond apart.
func newTicketNumber(now time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("TKT-%d-%s", now.UnixMilli(), hex.EncodeToString(b[:]))
}

// newVerificationCode returns the opaque code rendered into the ticket's
// QR image and scanned at the door.
func newVerificationCode(eventID, userID uint64) string {
	return fmt.Sprintf("EVENT-%d-USER-%d-%s", eventID, userID, uuid.NewString())
}
