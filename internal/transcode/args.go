package transcode

import (
	"fmt"
	"strconv"
	"strings"

	"mediaconv/internal/planner"
)

// toneMapChain converts PQ/HLG sources to BT.709 SDR before upload.
const toneMapChain = "zscale=t=linear:npl=100,format=gbrpf32le,zscale=p=bt709,tonemap=tonemap=hable:desat=0,zscale=t=bt709:m=bt709:r=tv"

// BuildArgs renders the ffmpeg argument list for an encode attempt.
func BuildArgs(req Request, opts Options) []string {
	p := req.Params
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-loglevel", "warning",
		"-init_hw_device", "qsv=hw,child_device=" + opts.Device,
		"-filter_hw_device", "hw",
	}
	if p.HardwareDecode {
		args = append(args,
			"-hwaccel", "qsv",
			"-hwaccel_output_format", "qsv",
			"-extra_hw_frames", strconv.Itoa(p.FrameBuffers),
		)
	}
	args = append(args,
		"-i", req.Source,
		"-map", "0:v:0",
	)
	for _, track := range p.Audio {
		args = append(args, "-map", fmt.Sprintf("0:%d", track.SourceIndex))
	}
	args = append(args,
		"-vf", VideoFilter(p, opts.DenoiseLevel),
		"-c:v", "hevc_qsv",
		"-preset", "medium",
		"-global_quality", strconv.Itoa(opts.GlobalQuality),
		"-look_ahead_depth", strconv.Itoa(p.LookAheadDepth),
		"-bf", strconv.Itoa(p.BFrames),
		"-async_depth", strconv.Itoa(p.FrameBuffers),
	)
	for i, track := range p.Audio {
		stream := strconv.Itoa(i)
		args = append(args,
			"-c:a:"+stream, track.Codec,
			"-ac:a:"+stream, strconv.Itoa(track.Channels),
			"-b:a:"+stream, fmt.Sprintf("%dk", track.BitrateKbps),
		)
	}
	args = append(args,
		"-sn",
		"-dn",
		"-map_metadata", "0",
		"-movflags", "+faststart",
		"-f", p.Container,
		req.Output,
	)
	return args
}

// VideoFilter builds the -vf chain: geometry in system memory, optional tone
// mapping, then upload to QSV surfaces and optional hardware denoise.
func VideoFilter(p planner.EncodingParams, denoise int) string {
	var chain []string
	if p.HardwareDecode {
		download := "nv12"
		if p.ToneMap {
			download = "p010le"
		}
		chain = append(chain, "hwdownload", "format="+download)
	}
	chain = append(chain, geometryFilters(p)...)
	if p.ToneMap {
		chain = append(chain, toneMapChain)
	}
	chain = append(chain,
		"format="+p.PixelFormat,
		"hwupload=extra_hw_frames="+strconv.Itoa(p.FrameBuffers),
	)
	if denoise > 0 {
		chain = append(chain, "vpp_qsv=denoise="+strconv.Itoa(denoise))
	}
	return strings.Join(chain, ",")
}

func geometryFilters(p planner.EncodingParams) []string {
	w, h := p.Width, p.Height
	if p.Scale == planner.ScaleDownscale {
		switch p.PaddingMode {
		case planner.PaddingCrop:
			return []string{
				fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", w, h),
				fmt.Sprintf("crop=%d:%d", w, h),
			}
		case planner.PaddingScale:
			return []string{fmt.Sprintf("scale=%d:%d", w, h)}
		default:
			return []string{
				fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", w, h),
				fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", w, h),
			}
		}
	}
	if w == p.SourceWidth && h == p.SourceHeight {
		return nil
	}
	switch p.PaddingMode {
	case planner.PaddingCrop:
		return []string{fmt.Sprintf("crop=%d:%d", w, h)}
	case planner.PaddingScale:
		return []string{fmt.Sprintf("scale=%d:%d", w, h)}
	default:
		return []string{fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", w, h)}
	}
}
