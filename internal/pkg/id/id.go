package id

import "github.com/oklog/ulid/v2"

// New returns a ULID string. ulid.Make uses a process-wide monotonic
// entropy source, so ids minted in the same millisecond still sort in
// creation order and are safe as DynamoDB partition keys.
func New() string {
	return ulid.Make().String()
}
