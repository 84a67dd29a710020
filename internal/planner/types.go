package planner

import "time"

// SourceProbe carries the source properties the planner and the subtitle
// normalizer need. It is produced by the probing collaborator.
type SourceProbe struct {
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Duration    time.Duration    `json:"duration"`
	VideoCodec  string           `json:"video_codec"`
	Profile     string           `json:"profile,omitempty"`
	PixelFormat string           `json:"pixel_format,omitempty"`
	BitDepth    int              `json:"bit_depth"`
	HDR         bool             `json:"hdr"`
	Audio       []AudioTrack     `json:"audio,omitempty"`
	Subtitles   []SubtitleStream `json:"subtitles,omitempty"`
}

// AudioTrack describes one source audio stream.
type AudioTrack struct {
	Index    int    `json:"index"`
	Codec    string `json:"codec"`
	Channels int    `json:"channels"`
	Language string `json:"language,omitempty"`
}

// SubtitleStream describes one embedded subtitle stream.
type SubtitleStream struct {
	Index    int    `json:"index"`
	Codec    string `json:"codec"`
	Language string `json:"language,omitempty"`
	Title    string `json:"title,omitempty"`
}

// ScaleMode records whether the video keeps its native size or is downscaled
// to the fixed 1080-class target.
type ScaleMode string

const (
	ScaleNative    ScaleMode = "native"
	ScaleDownscale ScaleMode = "downscale"
)

// PaddingMode controls how dimensions are brought onto the 16-pixel grid.
type PaddingMode string

const (
	// PaddingPad grows each dimension to the next multiple of 16 with black bars.
	PaddingPad PaddingMode = "pad"
	// PaddingCrop shrinks each dimension to the previous multiple of 16.
	PaddingCrop PaddingMode = "crop"
	// PaddingScale resamples to the nearest multiple of 16.
	PaddingScale PaddingMode = "scale"
)

// Fixed output format.
const (
	VideoCodecHEVC   = "hevc"
	ContainerMP4     = "mp4"
	PixelFormatNV12  = "nv12"
	AudioCodecAAC    = "aac"
	OutputChannels   = 2
	TargetWidth      = 1920
	TargetHeight     = 1072
	alignment        = 16
	fullHDMinWidth   = 1920
	fullHDMinHeight  = 1080
	uhdMinWidth      = 3840
	uhdMinHeight     = 2160
	hdMinWidth       = 1280
	hdMinHeight      = 720
	defaultFrameTier = 8
	defaultBFrames   = 7
)

// EncodingParams enumerates every encoder dimension mediaconv controls.
// Legal values are declared in the validate tags and enforced by Validate.
type EncodingParams struct {
	VideoCodec     string        `json:"video_codec" validate:"eq=hevc"`
	Container      string        `json:"container" validate:"eq=mp4"`
	PixelFormat    string        `json:"pixel_format" validate:"eq=nv12"`
	SourceWidth    int           `json:"source_width" validate:"gt=0"`
	SourceHeight   int           `json:"source_height" validate:"gt=0"`
	Width          int           `json:"width" validate:"gt=0,mod16"`
	Height         int           `json:"height" validate:"gt=0,mod16"`
	Scale          ScaleMode     `json:"scale" validate:"oneof=native downscale"`
	PaddingMode    PaddingMode   `json:"padding_mode" validate:"oneof=pad crop scale"`
	FrameBuffers   int           `json:"frame_buffers" validate:"oneof=8 4 2"`
	LookAheadDepth int           `json:"look_ahead_depth" validate:"oneof=40 20 10"`
	BFrames        int           `json:"b_frames" validate:"oneof=7 4 0"`
	HardwareDecode bool          `json:"hardware_decode"`
	ToneMap        bool          `json:"tone_map"`
	Audio          []AudioParams `json:"audio" validate:"dive"`
}

// AudioParams is the per-track audio target. Every source track is kept.
type AudioParams struct {
	SourceIndex int    `json:"source_index" validate:"gte=0"`
	Codec       string `json:"codec" validate:"eq=aac"`
	Channels    int    `json:"channels" validate:"eq=2"`
	BitrateKbps int    `json:"bitrate_kbps" validate:"oneof=256 192 128"`
}

// Clone returns a deep copy so mutations never alias a persisted snapshot.
func (p EncodingParams) Clone() EncodingParams {
	out := p
	if p.Audio != nil {
		out.Audio = append([]AudioParams(nil), p.Audio...)
	}
	return out
}
