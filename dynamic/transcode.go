package dynamic

import (
	"google.golang.org/protobuf/proto"

	"github.com/dynproto/reflect/protoval"
)

// TranscodeFrom converts a generated (compile-time) proto.Message into a
// dynamic Message described by md, by round-tripping through the wire
// format both share. md must describe the same type as src (field numbers
// and kinds must line up); mismatches surface as Unmarshal errors.
func TranscodeFrom(src proto.Message, md protoval.MessageDescriptor) (*Message, error) {
	b, err := proto.Marshal(src)
	if err != nil {
		return nil, err
	}
	return Unmarshal(b, md)
}

// TranscodeTo fills dst (a generated proto.Message) from src by
// round-tripping through the wire format. dst is reset before unmarshaling.
func TranscodeTo(src *Message, dst proto.Message) error {
	b, err := Marshal(src)
	if err != nil {
		return err
	}
	proto.Reset(dst)
	return proto.Unmarshal(b, dst)
}
