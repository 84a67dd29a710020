package planner_test

import (
	"reflect"
	"testing"

	"mediaconv/internal/planner"
)

func TestPlanKeepsNativeSizeBelowFullHD(t *testing.T) {
	probe := planner.SourceProbe{
		Width:      1280,
		Height:     720,
		VideoCodec: "h264",
		Profile:    "High",
		Audio:      []planner.AudioTrack{{Index: 1, Codec: "ac3", Channels: 6}},
	}
	params := planner.Plan(probe)

	if params.Scale != planner.ScaleNative {
		t.Fatalf("expected native scale, got %s", params.Scale)
	}
	if params.Width != 1280 || params.Height != 720 {
		t.Fatalf("expected 1280x720, got %dx%d", params.Width, params.Height)
	}
	if len(params.Audio) != 1 {
		t.Fatalf("expected one audio track, got %d", len(params.Audio))
	}
	if got := params.Audio[0]; got.BitrateKbps != 256 || got.Channels != 2 || got.Codec != "aac" {
		t.Fatalf("unexpected audio params %+v", got)
	}
	if !params.HardwareDecode {
		t.Fatal("expected hardware decode for 8-bit h264")
	}
	if err := planner.Validate(params); err != nil {
		t.Fatalf("planned params invalid: %v", err)
	}
}

func TestPlanDownscalesFullHDAndAbove(t *testing.T) {
	for _, tc := range []struct {
		name          string
		width, height int
	}{
		{"1080p", 1920, 1080},
		{"uhd", 3840, 2160},
	} {
		t.Run(tc.name, func(t *testing.T) {
			params := planner.Plan(planner.SourceProbe{Width: tc.width, Height: tc.height, VideoCodec: "hevc", HDR: true})
			if params.Scale != planner.ScaleDownscale {
				t.Fatalf("expected downscale, got %s", params.Scale)
			}
			if params.Width != planner.TargetWidth || params.Height != planner.TargetHeight {
				t.Fatalf("expected fixed target, got %dx%d", params.Width, params.Height)
			}
			if !params.ToneMap {
				t.Fatal("expected tone mapping for HDR source")
			}
		})
	}
}

func TestPlanAlignsOddSizes(t *testing.T) {
	cases := []struct {
		width, height int
		wantW, wantH  int
	}{
		{720, 480, 720, 480},
		{1918, 800, 1920, 800},
		{853, 358, 864, 368},
	}
	for _, tc := range cases {
		params := planner.Plan(planner.SourceProbe{Width: tc.width, Height: tc.height, VideoCodec: "mpeg2video"})
		if params.Width != tc.wantW || params.Height != tc.wantH {
			t.Fatalf("%dx%d: expected %dx%d, got %dx%d", tc.width, tc.height, tc.wantW, tc.wantH, params.Width, params.Height)
		}
		if params.HardwareDecode {
			t.Fatalf("%dx%d: mpeg2 should decode in software", tc.width, tc.height)
		}
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	probe := planner.SourceProbe{
		Width: 1440, Height: 1080, VideoCodec: "h264",
		Audio: []planner.AudioTrack{{Index: 1, Channels: 2}, {Index: 2, Channels: 1}},
	}
	first := planner.Plan(probe)
	second := planner.Plan(probe)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical plans, got %+v and %+v", first, second)
	}
	if first.Audio[0].BitrateKbps != 192 || first.Audio[1].BitrateKbps != 128 {
		t.Fatalf("unexpected bitrates %+v", first.Audio)
	}
}

func TestPlanDisablesHardwareDecodeForUnsupportedProfiles(t *testing.T) {
	for _, profile := range []string{"High 10", "High 4:4:4 Predictive"} {
		params := planner.Plan(planner.SourceProbe{Width: 1280, Height: 720, VideoCodec: "h264", Profile: profile})
		if params.HardwareDecode {
			t.Fatalf("profile %q should not use hardware decode", profile)
		}
	}
}

func TestResolutionClass(t *testing.T) {
	cases := map[string][2]int{
		"uhd":   {3840, 2160},
		"fhd":   {1920, 1080},
		"hd720": {1280, 720},
		"sd":    {720, 480},
	}
	for want, dims := range cases {
		if got := planner.ResolutionClass(dims[0], dims[1]); got != want {
			t.Fatalf("ResolutionClass(%d,%d)=%s want %s", dims[0], dims[1], got, want)
		}
	}
}

func TestWithFrameBuffersMovesLookAhead(t *testing.T) {
	base := planner.Plan(planner.SourceProbe{Width: 1920, Height: 1080, VideoCodec: "h264"})
	next, err := base.With(planner.DimensionFrameBuffers, "4")
	if err != nil {
		t.Fatalf("With returned error: %v", err)
	}
	if next.FrameBuffers != 4 || next.LookAheadDepth != 20 {
		t.Fatalf("expected tier 4/20, got %d/%d", next.FrameBuffers, next.LookAheadDepth)
	}
	if base.FrameBuffers != 8 {
		t.Fatalf("With mutated the receiver: %d", base.FrameBuffers)
	}
}

func TestWithPaddingModeRecomputesGeometry(t *testing.T) {
	base := planner.Plan(planner.SourceProbe{Width: 1918, Height: 804, VideoCodec: "h264"})
	cropped, err := base.With(planner.DimensionPaddingMode, "crop")
	if err != nil {
		t.Fatalf("With returned error: %v", err)
	}
	if cropped.Width != 1904 || cropped.Height != 800 {
		t.Fatalf("expected 1904x800, got %dx%d", cropped.Width, cropped.Height)
	}
	scaled, err := base.With(planner.DimensionPaddingMode, "scale")
	if err != nil {
		t.Fatalf("With returned error: %v", err)
	}
	if scaled.Width != 1920 || scaled.Height != 800 {
		t.Fatalf("expected 1920x800, got %dx%d", scaled.Width, scaled.Height)
	}
}

func TestWithRejectsIllegalValues(t *testing.T) {
	base := planner.Plan(planner.SourceProbe{Width: 1280, Height: 720, VideoCodec: "h264"})
	if _, err := base.With(planner.DimensionBFrames, "3"); err == nil {
		t.Fatal("expected error for b-frames outside candidate set")
	}
	if _, err := base.With(planner.DimensionFrameBuffers, "6"); err == nil {
		t.Fatal("expected error for unknown frame tier")
	}
	if _, err := base.With(planner.DimensionPaddingMode, "stretch"); err == nil {
		t.Fatal("expected error for unknown padding mode")
	}
}

func TestCandidatesCoverEveryDimension(t *testing.T) {
	for _, dim := range []planner.Dimension{planner.DimensionFrameBuffers, planner.DimensionBFrames, planner.DimensionPaddingMode} {
		values := planner.Candidates(dim)
		if len(values) != 3 {
			t.Fatalf("%s: expected three candidates, got %v", dim, values)
		}
	}
	if _, err := planner.ParseDimension("crf"); err == nil {
		t.Fatal("expected error for unknown dimension")
	}
}
