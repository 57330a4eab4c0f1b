package ffmpeg

import (
	"strconv"
	"strings"
)

// Base returns the ffmpeg command with standard flags.
// level+info prefixes every line with its level for ParseLogLevel.
func Base() string {
	return "ffmpeg -hide_banner -loglevel level+info"
}

// BuildTranscodeCommand builds the ffmpeg command converting a raw recording.
// Paths are double-quoted so recordings under directories with spaces survive parsing.
func BuildTranscodeCommand(p TranscodeParams) string {
	var cmd strings.Builder

	cmd.WriteString(Base())
	cmd.WriteString(" -y")

	if p.InputFormat != "" {
		cmd.WriteString(" -f " + p.InputFormat)
	}
	if p.Framerate > 0 {
		cmd.WriteString(" -framerate " + strconv.FormatFloat(p.Framerate, 'f', -1, 64))
	}
	cmd.WriteString(" -i " + quote(p.Input))

	cmd.WriteString(" -c:v " + orDefault(p.Codec, DefaultCodec))
	cmd.WriteString(" -preset " + orDefault(p.Preset, DefaultPreset))

	crf := p.CRF
	if crf <= 0 {
		crf = DefaultCRF
	}
	cmd.WriteString(" -crf " + strconv.Itoa(crf))
	cmd.WriteString(" -pix_fmt " + orDefault(p.PixFmt, DefaultPixFmt))

	cmd.WriteString(" " + quote(p.Output))

	return cmd.String()
}

// ExpandTemplate substitutes {input} and {output} in a user supplied command.
func ExpandTemplate(template, input, output string) string {
	return strings.NewReplacer("{input}", quote(input), "{output}", quote(output)).Replace(template)
}

// quote wraps a path in double quotes, escaping characters the command parser treats specially.
func quote(path string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(path)
	return `"` + escaped + `"`
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
