package planner

import "strings"

// Plan derives the initial encoding parameters for a probed source. It is a
// pure function: identical probes always yield identical params, and failure
// history is never consulted.
//
//   - Below 1080p in either dimension: native size aligned to mod-16 by padding.
//   - At or above 1080p: fixed 1920x1072 target.
//   - Every audio track becomes stereo AAC with a bitrate chosen by source channels.
//   - HEVC in MP4 with NV12 pixels, always.
func Plan(probe SourceProbe) EncodingParams {
	params := EncodingParams{
		VideoCodec:     VideoCodecHEVC,
		Container:      ContainerMP4,
		PixelFormat:    PixelFormatNV12,
		SourceWidth:    probe.Width,
		SourceHeight:   probe.Height,
		PaddingMode:    PaddingPad,
		FrameBuffers:   defaultFrameTier,
		LookAheadDepth: lookAheadForTier(defaultFrameTier),
		BFrames:        defaultBFrames,
		HardwareDecode: hardwareDecodable(probe),
		ToneMap:        probe.HDR,
		Audio:          planAudio(probe.Audio),
	}
	if isFullHD(probe.Width, probe.Height) {
		params.Scale = ScaleDownscale
	} else {
		params.Scale = ScaleNative
	}
	params.Width, params.Height = geometry(params.Scale, params.PaddingMode, probe.Width, probe.Height)
	return params
}

// ResolutionClass buckets a source for heuristic bias lookups.
func ResolutionClass(width, height int) string {
	switch {
	case width >= uhdMinWidth || height >= uhdMinHeight:
		return "uhd"
	case isFullHD(width, height):
		return "fhd"
	case width >= hdMinWidth || height >= hdMinHeight:
		return "hd720"
	default:
		return "sd"
	}
}

// AudioBitrateKbps returns the stereo AAC bitrate for a source channel count.
func AudioBitrateKbps(channels int) int {
	switch {
	case channels >= 6:
		return 256
	case channels == 1:
		return 128
	default:
		return 192
	}
}

func isFullHD(width, height int) bool {
	return width >= fullHDMinWidth && height >= fullHDMinHeight
}

func planAudio(tracks []AudioTrack) []AudioParams {
	if len(tracks) == 0 {
		return nil
	}
	out := make([]AudioParams, 0, len(tracks))
	for _, track := range tracks {
		out = append(out, AudioParams{
			SourceIndex: track.Index,
			Codec:       AudioCodecAAC,
			Channels:    OutputChannels,
			BitrateKbps: AudioBitrateKbps(track.Channels),
		})
	}
	return out
}

// geometry computes output dimensions. Downscaled sources always land on the
// fixed target; the padding mode only decides how aspect is reconciled, which
// is the transcoder's concern.
func geometry(scale ScaleMode, mode PaddingMode, width, height int) (int, int) {
	if scale == ScaleDownscale {
		return TargetWidth, TargetHeight
	}
	return align(width, mode), align(height, mode)
}

func align(value int, mode PaddingMode) int {
	if value <= 0 {
		return alignment
	}
	switch mode {
	case PaddingCrop:
		aligned := value / alignment * alignment
		if aligned == 0 {
			return alignment
		}
		return aligned
	case PaddingScale:
		aligned := (value + alignment/2) / alignment * alignment
		if aligned == 0 {
			return alignment
		}
		return aligned
	default:
		return (value + alignment - 1) / alignment * alignment
	}
}

// hardwareDecodable mirrors the QSV decoder's supported inputs: 8-bit H.264,
// HEVC and VP9, excluding 4:4:4 and High 10 profiles.
func hardwareDecodable(probe SourceProbe) bool {
	switch strings.ToLower(probe.VideoCodec) {
	case "hevc", "h264", "vp9":
	default:
		return false
	}
	profile := strings.ToLower(probe.Profile)
	if strings.Contains(profile, "4:4:4") || profile == "high 10" {
		return false
	}
	return true
}
