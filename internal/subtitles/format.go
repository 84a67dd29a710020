package subtitles

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// codecExtensions maps ffprobe subtitle codec names to sidecar extensions.
var codecExtensions = map[string]string{
	"subrip":            "srt",
	"srt":               "srt",
	"ass":               "ass",
	"ssa":               "ssa",
	"webvtt":            "vtt",
	"mov_text":          "srt",
	"text":              "srt",
	"microdvd":          "sub",
	"dvd_subtitle":      "sub",
	"dvb_subtitle":      "sub",
	"hdmv_pgs_subtitle": "sup",
	"pgs":               "sup",
}

var binaryCodecs = map[string]bool{
	"dvd_subtitle":      true,
	"dvb_subtitle":      true,
	"hdmv_pgs_subtitle": true,
	"pgs":               true,
}

var mpegPackHeader = []byte{0x00, 0x00, 0x01, 0xBA}

// ExtensionForCodec returns the sidecar extension for an ffprobe codec name,
// defaulting to srt for unknown text codecs.
func ExtensionForCodec(codec string) string {
	codec = strings.ToLower(strings.TrimSpace(codec))
	if ext, ok := codecExtensions[codec]; ok {
		return ext
	}
	return "srt"
}

// IsBinaryCodec reports whether an embedded codec is image based.
func IsBinaryCodec(codec string) bool {
	return binaryCodecs[strings.ToLower(strings.TrimSpace(codec))]
}

func trackExtension(track Track) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(track.Path)), "."); ext != "" {
		return ext
	}
	return ExtensionForCodec(track.Codec)
}

// isBinary decides whether raw must be preserved byte for byte. PGS is always
// binary; a .sub is VobSub when it starts with an MPEG-PS pack header or looks
// binary without a MicroDVD opening brace.
func isBinary(track Track, ext string, raw []byte) bool {
	if IsBinaryCodec(track.Codec) {
		return true
	}
	switch ext {
	case "sup":
		return true
	case "sub", "idx":
		if bytes.HasPrefix(raw, mpegPackHeader) {
			return true
		}
		trimmed := bytes.TrimLeft(raw, " \t\r\n\xEF\xBB\xBF")
		if len(trimmed) > 0 && trimmed[0] == '{' {
			return false
		}
		header := raw
		if len(header) > 32 {
			header = header[:32]
		}
		return bytes.IndexByte(header, 0x00) >= 0
	default:
		return false
	}
}

// vobSubCompanion returns the .idx file paired with a VobSub .sub, if any.
func vobSubCompanion(path string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{".idx", ".IDX"} {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}
