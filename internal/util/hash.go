// Package util provides shared utility functions.
package util

import (
	"fmt"
	"hash/fnv"
)

// RoomIDFromSDP derives a short room id from the offer SDP. The host computes
// it from its own offer and the guest from the offer it received, so both
// players see the same value. The id is for display only.
func RoomIDFromSDP(sdp string) string {
	h := fnv.New32a()
	h.Write([]byte(sdp))
	return fmt.Sprintf("%06x", h.Sum32()&0xffffff)
}
