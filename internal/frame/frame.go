// Package frame defines the encoded frame passed through the output stage.
// Payloads are opaque; nothing in this module inspects codec bitstreams.
package frame

// Flags annotate a frame handed to a sink.
type Flags uint32

// Frame flags.
const (
	FlagNone     Flags = 0
	FlagKeyframe Flags = 1 << 0
	FlagRestart  Flags = 1 << 1 // first frame after the gate (re)opened
)

// Has reports whether all bits of f2 are set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Frame is one encoded frame with its capture timestamp.
type Frame struct {
	Data        []byte
	TimestampUs int64
	Keyframe    bool
}

// Clone returns a copy that owns its payload.
func (f Frame) Clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return Frame{Data: data, TimestampUs: f.TimestampUs, Keyframe: f.Keyframe}
}

// Flags returns FlagKeyframe for keyframes and FlagNone otherwise.
func (f Frame) Flags() Flags {
	if f.Keyframe {
		return FlagKeyframe
	}
	return FlagNone
}
