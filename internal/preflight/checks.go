package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"mediaconv/internal/config"
	"mediaconv/internal/deps"
)

const (
	minWorkFreeBytes   = 20 << 30
	minAvailableMemory = 2 << 30
)

// FFmpegBinary resolves the ffmpeg command from configuration.
func FFmpegBinary(cfg *config.Config) string {
	return deps.ResolveBinary(cfg.Encoding.FFmpegBinary, "ffmpeg")
}

// FFprobeBinary resolves the ffprobe command from configuration.
func FFprobeBinary(cfg *config.Config) string {
	return deps.ResolveBinary(cfg.Encoding.FFprobeBinary, "ffprobe")
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps resolves ffmpeg and ffprobe and records their versions.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(ctx, []deps.Requirement{
		{Name: "FFmpeg", Command: FFmpegBinary(cfg), VersionFlag: "-version"},
		{Name: "FFprobe", Command: FFprobeBinary(cfg), VersionFlag: "-version"},
	})
}

// CheckDevice verifies the hardware encoder node exists, is a character
// device and can be opened read/write.
func CheckDevice(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a character device)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v; add the user to the render group)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckQuality verifies the encoder global quality is inside the ICQ range.
func CheckQuality(quality int) Result {
	const name = "Global quality"
	if quality < 1 || quality > 51 {
		return Result{Name: name, Detail: fmt.Sprintf("%d (must be 1-51)", quality)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d", quality)}
}

// CheckFreeSpace reports whether the filesystem holding path has at least
// minFree bytes available. Low space is advisory.
func CheckFreeSpace(name, path string, minFree uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Advisory: true, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s (%s free)", path, formatBytes(free))
	if free < minFree {
		return Result{Name: name, Advisory: true, Detail: detail + fmt.Sprintf(", below %s", formatBytes(minFree))}
	}
	return Result{Name: name, Passed: true, Advisory: true, Detail: detail}
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
