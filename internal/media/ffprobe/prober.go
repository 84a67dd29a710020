package ffprobe

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"mediaconv/internal/language"
	"mediaconv/internal/planner"
)

// Prober inspects sources with a configured ffprobe binary.
type Prober struct {
	Binary string
}

// Probe inspects path and adapts the result into a planner.SourceProbe.
func (p Prober) Probe(ctx context.Context, path string) (planner.SourceProbe, error) {
	result, err := Inspect(ctx, p.Binary, path)
	if err != nil {
		return planner.SourceProbe{}, err
	}
	return ToSourceProbe(result)
}

// ToSourceProbe converts ffprobe output into the planner's source model.
// Sources without a decodable video stream wrap ErrNoVideo.
func ToSourceProbe(result Result) (planner.SourceProbe, error) {
	video, ok := result.PrimaryVideo()
	if !ok || video.Width <= 0 || video.Height <= 0 {
		return planner.SourceProbe{}, fmt.Errorf("%s: %w", result.Format.Filename, ErrNoVideo)
	}
	probe := planner.SourceProbe{
		Width:       video.Width,
		Height:      video.Height,
		VideoCodec:  strings.ToLower(video.CodecName),
		Profile:     video.Profile,
		PixelFormat: video.PixFmt,
		BitDepth:    bitDepth(video),
		HDR:         isHDR(video),
	}
	if seconds := result.DurationSeconds(); seconds > 0 && !math.IsNaN(seconds) {
		probe.Duration = time.Duration(seconds * float64(time.Second))
	}
	for _, stream := range result.Streams {
		switch strings.ToLower(stream.CodecType) {
		case "audio":
			probe.Audio = append(probe.Audio, planner.AudioTrack{
				Index:    stream.Index,
				Codec:    stream.CodecName,
				Channels: stream.Channels,
				Language: language.ToISO2(language.ExtractFromTags(stream.Tags)),
			})
		case "subtitle":
			probe.Subtitles = append(probe.Subtitles, planner.SubtitleStream{
				Index:    stream.Index,
				Codec:    stream.CodecName,
				Language: language.ToISO2(language.ExtractFromTags(stream.Tags)),
				Title:    strings.TrimSpace(stream.Tags["title"]),
			})
		}
	}
	return probe, nil
}

func bitDepth(stream Stream) int {
	if bits, err := strconv.Atoi(strings.TrimSpace(stream.BitsPerRawSample)); err == nil && bits > 0 {
		return bits
	}
	pix := strings.ToLower(stream.PixFmt)
	switch {
	case strings.Contains(pix, "12le") || strings.Contains(pix, "12be"):
		return 12
	case strings.Contains(pix, "10le") || strings.Contains(pix, "10be") || pix == "p010le":
		return 10
	default:
		return 8
	}
}

func isHDR(stream Stream) bool {
	switch strings.ToLower(stream.ColorTransfer) {
	case "smpte2084", "arib-std-b67":
		return true
	}
	return false
}
