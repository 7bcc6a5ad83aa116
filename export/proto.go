// Package export serializes decoded logs for downstream consumers: a
// protobuf message for tag stores and CSV for inspection.
package export

import (
	"fmt"

	uuid "github.com/satori/go.uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/egonelbre/exp-esplog/esplog"
)

// TelemetryLogName is the full protobuf name of the exported message.
const TelemetryLogName = "esplog.v1.TelemetryLog"

// telemetryFile describes:
//
//	message Sample { double timestamp = 1; double x = 2; double y = 3; double z = 4; }
//	message TelemetryLog {
//	  string capture_id = 1;
//	  string orientation = 2;
//	  uint32 accel_range = 3;
//	  repeated Sample gyro = 4;
//	  repeated Sample accel = 5;
//	}
var telemetryFile = &descriptorpb.FileDescriptorProto{
	Name:    proto.String("esplog/v1/telemetry.proto"),
	Package: proto.String("esplog.v1"),
	Syntax:  proto.String("proto3"),
	MessageType: []*descriptorpb.DescriptorProto{
		{
			Name: proto.String("Sample"),
			Field: []*descriptorpb.FieldDescriptorProto{
				scalarField("timestamp", 1, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
				scalarField("x", 2, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
				scalarField("y", 3, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
				scalarField("z", 4, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
			},
		},
		{
			Name: proto.String("TelemetryLog"),
			Field: []*descriptorpb.FieldDescriptorProto{
				scalarField("capture_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalarField("orientation", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalarField("accel_range", 3, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				sampleListField("gyro", 4),
				sampleListField("accel", 5),
			},
		},
	},
}

func scalarField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(jsonName(name)),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}

func sampleListField(name string, number int32) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: proto.String(".esplog.v1.Sample"),
	}
}

func jsonName(name string) string {
	out := make([]byte, 0, len(name))
	upper := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' {
			upper = true
			continue
		}
		if upper && 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}

// descriptors holds the resolved message and field descriptors.
type descriptors struct {
	log    protoreflect.MessageDescriptor
	sample protoreflect.MessageDescriptor

	captureID, orientation, accelRange, gyro, accel protoreflect.FieldDescriptor
	timestamp, x, y, z                              protoreflect.FieldDescriptor
}

var desc = func() *descriptors {
	file, err := protodesc.NewFile(telemetryFile, new(protoregistry.Files))
	if err != nil {
		panic(fmt.Sprintf("invalid telemetry descriptor: %v", err))
	}

	d := &descriptors{
		log:    file.Messages().ByName("TelemetryLog"),
		sample: file.Messages().ByName("Sample"),
	}

	logFields := d.log.Fields()
	d.captureID = logFields.ByName("capture_id")
	d.orientation = logFields.ByName("orientation")
	d.accelRange = logFields.ByName("accel_range")
	d.gyro = logFields.ByName("gyro")
	d.accel = logFields.ByName("accel")

	sampleFields := d.sample.Fields()
	d.timestamp = sampleFields.ByName("timestamp")
	d.x = sampleFields.ByName("x")
	d.y = sampleFields.ByName("y")
	d.z = sampleFields.ByName("z")
	return d
}()

// Descriptor returns the descriptor of the exported TelemetryLog message.
func Descriptor() protoreflect.MessageDescriptor { return desc.log }

// CaptureID derives a stable identifier for a recording from its name.
func CaptureID(name string) uuid.UUID {
	return uuid.NewV5(uuid.NamespaceURL, "esplog:"+name)
}

// Message converts a parse result into a TelemetryLog message.
func Message(result *esplog.Result, id uuid.UUID) proto.Message {
	msg := dynamicpb.NewMessage(desc.log)

	if id != uuid.Nil {
		msg.Set(desc.captureID, protoreflect.ValueOfString(id.String()))
	}
	msg.Set(desc.orientation, protoreflect.ValueOfString(result.Orientation))
	msg.Set(desc.accelRange, protoreflect.ValueOfUint32(uint32(result.AccelRange)))

	appendSamples(msg.Mutable(desc.gyro).List(), result.Gyro)
	appendSamples(msg.Mutable(desc.accel).List(), result.Accel)

	return msg
}

func appendSamples(list protoreflect.List, samples []esplog.Sample) {
	for _, s := range samples {
		elem := list.NewElement()
		m := elem.Message()
		m.Set(desc.timestamp, protoreflect.ValueOfFloat64(s.Timestamp))
		m.Set(desc.x, protoreflect.ValueOfFloat64(s.X))
		m.Set(desc.y, protoreflect.ValueOfFloat64(s.Y))
		m.Set(desc.z, protoreflect.ValueOfFloat64(s.Z))
		list.Append(elem)
	}
}

// Marshal encodes a parse result as a TelemetryLog message.
func Marshal(result *esplog.Result, id uuid.UUID) ([]byte, error) {
	data, err := proto.Marshal(Message(result, id))
	if err != nil {
		return nil, fmt.Errorf("marshal telemetry log: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a TelemetryLog message. Stream statistics are not part
// of the message and are left empty.
func Unmarshal(data []byte) (*esplog.Result, uuid.UUID, error) {
	msg := dynamicpb.NewMessage(desc.log)
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, uuid.Nil, fmt.Errorf("unmarshal telemetry log: %w", err)
	}

	id := uuid.Nil
	if s := msg.Get(desc.captureID).String(); s != "" {
		var err error
		id, err = uuid.FromString(s)
		if err != nil {
			return nil, uuid.Nil, fmt.Errorf("capture id: %w", err)
		}
	}

	result := &esplog.Result{
		Orientation: msg.Get(desc.orientation).String(),
		AccelRange:  uint8(msg.Get(desc.accelRange).Uint()),
		Gyro:        readSamples(msg.Get(desc.gyro).List(), esplog.Gyro),
		Accel:       readSamples(msg.Get(desc.accel).List(), esplog.Accel),
	}
	return result, id, nil
}

func readSamples(list protoreflect.List, axis esplog.Axis) []esplog.Sample {
	if list.Len() == 0 {
		return nil
	}

	samples := make([]esplog.Sample, list.Len())
	for i := range samples {
		m := list.Get(i).Message()
		samples[i] = esplog.Sample{
			Timestamp: m.Get(desc.timestamp).Float(),
			Axis:      axis,
			X:         m.Get(desc.x).Float(),
			Y:         m.Get(desc.y).Float(),
			Z:         m.Get(desc.z).Float(),
		}
	}
	return samples
}
