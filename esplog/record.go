package esplog

import (
	"bytes"
	"fmt"
)

const (
	// Magic is the ASCII identifier at the start of a log file.
	Magic = "EspLog0"
	// HeaderSize is the size of the file header.
	HeaderSize = len(Magic)

	// SupportedRevision is the only gyro setup revision the parser accepts.
	SupportedRevision = 1
)

// Tag identifies a record in the log stream.
type Tag byte

const (
	TagGyroSetup   Tag = 0x01 // revision u8, capacity u16
	TagDeltaTime   Tag = 0x02 // dt u32, microseconds
	TagGyroData    Tag = 0x03 // compressed gyro block
	TagAccelSetup  Tag = 0x04 // samples per packet u8, range exponent u8
	TagAccelData   Tag = 0x05 // count x (i16, i16, i16)
	TagTimeOffset  Tag = 0x06 // offset i32, microseconds
	TagOrientation Tag = 0x07 // 3 bytes ASCII
)

var tagNames = map[Tag]string{
	TagGyroSetup:   "gyro-setup",
	TagDeltaTime:   "delta-time",
	TagGyroData:    "gyro-data",
	TagAccelSetup:  "accel-setup",
	TagAccelData:   "accel-data",
	TagTimeOffset:  "time-offset",
	TagOrientation: "orientation",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tag(0x%02x)", byte(t))
}

// Known reports whether the parser handles records with this tag.
func (t Tag) Known() bool {
	_, ok := tagNames[t]
	return ok
}

// Detect reports whether header starts with the log file magic.
func Detect(header []byte) bool {
	return bytes.HasPrefix(header, []byte(Magic))
}
