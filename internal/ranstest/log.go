package ranstest

import (
	"bytes"
	"encoding/binary"
)

// LogMagic is the file header written by NewLog.
const LogMagic = "EspLog0"

// Log builds a log file record by record.
type Log struct {
	buf bytes.Buffer
}

// NewLog starts a log with the standard 7-byte header.
func NewLog() *Log {
	l := &Log{}
	l.buf.WriteString(LogMagic)
	return l
}

// Setup appends a gyro setup record.
func (l *Log) Setup(revision uint8, capacity uint16) *Log {
	l.buf.WriteByte(0x01)
	l.buf.WriteByte(revision)
	l.buf.Write(binary.LittleEndian.AppendUint16(nil, capacity))
	return l
}

// DeltaTime appends a delta time record.
func (l *Log) DeltaTime(us uint32) *Log {
	l.buf.WriteByte(0x02)
	l.buf.Write(binary.LittleEndian.AppendUint32(nil, us))
	return l
}

// Gyro appends a compressed gyro record carrying block.
func (l *Log) Gyro(block []byte) *Log {
	l.buf.WriteByte(0x03)
	l.buf.Write(block)
	return l
}

// AccelSetup appends an accelerometer setup record.
func (l *Log) AccelSetup(count, rangeExp uint8) *Log {
	l.buf.WriteByte(0x04)
	l.buf.WriteByte(count)
	l.buf.WriteByte(rangeExp)
	return l
}

// Accel appends an accelerometer data record.
func (l *Log) Accel(samples ...[3]int16) *Log {
	l.buf.WriteByte(0x05)
	for _, s := range samples {
		for _, v := range s {
			l.buf.Write(binary.LittleEndian.AppendUint16(nil, uint16(v)))
		}
	}
	return l
}

// TimeOffset appends a time offset record.
func (l *Log) TimeOffset(us int32) *Log {
	l.buf.WriteByte(0x06)
	l.buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(us)))
	return l
}

// Orientation appends an orientation record; name must be 3 bytes.
func (l *Log) Orientation(name string) *Log {
	if len(name) != 3 {
		panic("orientation must be 3 bytes")
	}
	l.buf.WriteByte(0x07)
	l.buf.WriteString(name)
	return l
}

// Raw appends arbitrary bytes.
func (l *Log) Raw(p ...byte) *Log {
	l.buf.Write(p)
	return l
}

// Len returns the current size of the log.
func (l *Log) Len() int { return l.buf.Len() }

// Bytes returns a copy of the encoded log.
func (l *Log) Bytes() []byte {
	return bytes.Clone(l.buf.Bytes())
}
