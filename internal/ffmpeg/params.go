package ffmpeg

// Defaults applied by BuildTranscodeCommand for unset fields.
const (
	DefaultCodec     = "libx264"
	DefaultPreset    = "medium"
	DefaultCRF       = 23
	DefaultPixFmt    = "yuv420p"
	DefaultContainer = "mp4"
)

// TranscodeParams describes the conversion of a raw recording into a container file.
type TranscodeParams struct {
	Input  string // raw recording path
	Output string // target path

	// Input demuxing (optional, ffmpeg probes when empty)
	InputFormat string  // mjpeg, h264, etc.
	Framerate   float64 // input framerate (0 = not set)

	// Encoder
	Codec  string // libx264 when empty
	Preset string // medium when empty
	CRF    int    // 0-51 (0 = DefaultCRF)
	PixFmt string // yuv420p when empty
}
