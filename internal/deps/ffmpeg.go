package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ResolveBinary returns the configured command, or fallback when unset.
func ResolveBinary(configured, fallback string) string {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return trimmed
	}
	return fallback
}

// CheckEncoder reports whether ffmpeg was built with the named encoder.
func CheckEncoder(ctx context.Context, ffmpegBinary, encoder string) Status {
	status := Status{
		Name:    "FFmpeg " + encoder,
		Command: ffmpegBinary,
	}
	if _, err := exec.LookPath(ffmpegBinary); err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", ffmpegBinary)
		return status
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	output, err := exec.CommandContext(checkCtx, ffmpegBinary, "-hide_banner", "-encoders").Output()
	if err != nil {
		status.Detail = fmt.Sprintf("list encoders: %v", err)
		return status
	}
	if hasEncoder(output, encoder) {
		status.Available = true
		return status
	}
	status.Detail = fmt.Sprintf("encoder %q not compiled in", encoder)
	return status
}

// hasEncoder scans `ffmpeg -encoders` output, whose rows read
// " V....D hevc_qsv   description".
func hasEncoder(output []byte, encoder string) bool {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == encoder {
			return true
		}
	}
	return false
}
