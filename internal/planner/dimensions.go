package planner

import (
	"fmt"
	"strconv"
)

// Dimension names one adjustable encoder knob in the retry mutation space.
type Dimension string

const (
	DimensionFrameBuffers Dimension = "frame_buffers"
	DimensionBFrames      Dimension = "b_frames"
	DimensionPaddingMode  Dimension = "padding_mode"
)

// frameTiers pairs async depth with look-ahead depth, highest memory first.
var frameTiers = []struct {
	frames    int
	lookAhead int
}{
	{8, 40},
	{4, 20},
	{2, 10},
}

var bFrameCandidates = []int{7, 4, 0}

var paddingCandidates = []PaddingMode{PaddingPad, PaddingCrop, PaddingScale}

// ParseDimension validates a configured dimension name.
func ParseDimension(name string) (Dimension, error) {
	switch Dimension(name) {
	case DimensionFrameBuffers, DimensionBFrames, DimensionPaddingMode:
		return Dimension(name), nil
	default:
		return "", fmt.Errorf("unknown mutation dimension %q", name)
	}
}

// Candidates returns the ordered, bounded candidate values for a dimension.
func Candidates(dim Dimension) []string {
	switch dim {
	case DimensionFrameBuffers:
		out := make([]string, 0, len(frameTiers))
		for _, tier := range frameTiers {
			out = append(out, strconv.Itoa(tier.frames))
		}
		return out
	case DimensionBFrames:
		out := make([]string, 0, len(bFrameCandidates))
		for _, v := range bFrameCandidates {
			out = append(out, strconv.Itoa(v))
		}
		return out
	case DimensionPaddingMode:
		out := make([]string, 0, len(paddingCandidates))
		for _, v := range paddingCandidates {
			out = append(out, string(v))
		}
		return out
	default:
		return nil
	}
}

// Value reports the params' current value for a dimension.
func (p EncodingParams) Value(dim Dimension) string {
	switch dim {
	case DimensionFrameBuffers:
		return strconv.Itoa(p.FrameBuffers)
	case DimensionBFrames:
		return strconv.Itoa(p.BFrames)
	case DimensionPaddingMode:
		return string(p.PaddingMode)
	default:
		return ""
	}
}

// With returns a copy of p with one dimension set to value. Dependent fields
// (look-ahead depth, aligned dimensions) are recomputed so the result stays valid.
func (p EncodingParams) With(dim Dimension, value string) (EncodingParams, error) {
	out := p.Clone()
	switch dim {
	case DimensionFrameBuffers:
		frames, err := strconv.Atoi(value)
		if err != nil {
			return p, fmt.Errorf("frame buffers %q: %w", value, err)
		}
		lookAhead := lookAheadForTier(frames)
		if lookAhead == 0 {
			return p, fmt.Errorf("frame buffers %d not a known tier", frames)
		}
		out.FrameBuffers = frames
		out.LookAheadDepth = lookAhead
	case DimensionBFrames:
		bf, err := strconv.Atoi(value)
		if err != nil {
			return p, fmt.Errorf("b-frames %q: %w", value, err)
		}
		out.BFrames = bf
	case DimensionPaddingMode:
		out.PaddingMode = PaddingMode(value)
		out.Width, out.Height = geometry(out.Scale, out.PaddingMode, out.SourceWidth, out.SourceHeight)
	default:
		return p, fmt.Errorf("unknown mutation dimension %q", dim)
	}
	if err := Validate(out); err != nil {
		return p, err
	}
	return out, nil
}

func lookAheadForTier(frames int) int {
	for _, tier := range frameTiers {
		if tier.frames == frames {
			return tier.lookAhead
		}
	}
	return 0
}
