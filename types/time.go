package types

import "time"

// Timestamp is the block header time. The adapter hands only Seconds to
// the state machine; Nanos is carried for engines that set it.
type Timestamp struct {
	Seconds int64 `cramberry:"1"`
	Nanos   int32 `cramberry:"2"`
}

// TimeToTimestamp converts t to a header timestamp.
func TimeToTimestamp(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// ToTime returns the timestamp in UTC.
func (ts Timestamp) ToTime() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}
