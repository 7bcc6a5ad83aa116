package esplog

// Axis identifies the sensor a sample comes from.
type Axis uint8

const (
	Gyro  Axis = iota // degrees per second
	Accel             // g
)

func (a Axis) String() string {
	switch a {
	case Gyro:
		return "gyro"
	case Accel:
		return "accel"
	default:
		return "unknown"
	}
}

// Sample is one timestamped 3-axis reading.
type Sample struct {
	Timestamp float64 // seconds since the start of the log
	Axis      Axis
	X, Y, Z   float64
}

// DefaultOrientation is used when a log has no valid orientation record.
const DefaultOrientation = "xyz"

// Result holds everything a parse produced.
type Result struct {
	Gyro  []Sample
	Accel []Sample

	// Orientation is the 3-character axis orientation of the sensor.
	Orientation string
	// AccelRange is the range exponent of the last accelerometer setup record.
	AccelRange uint8

	Stats Stats
}

// Len returns the total number of samples.
func (r *Result) Len() int { return len(r.Gyro) + len(r.Accel) }

// Stats describes the stream structure seen during a parse.
type Stats struct {
	Records   map[Tag]int // records read per tag
	Blocks    int         // gyro blocks decoded successfully
	Bytes     int64       // bytes of the log read, header included
	Saturated int         // saturated gyro triples
	Dropped   int         // raw samples left without a closing delta time

	// Stopped is the reason the stream ended before its end, nil when the
	// parser reached the end of input or an unknown tag.
	Stopped error
}
