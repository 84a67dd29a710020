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

const versionTimeout = 5 * time.Second

// Requirement names an external binary the workers execute. VersionFlag,
// when set, is passed to the binary to capture its version banner.
type Requirement struct {
	Name        string
	Command     string
	VersionFlag string
	Optional    bool
}

// Status reports whether a requirement resolved on PATH and, if asked, the
// version it reported.
type Status struct {
	Name      string
	Command   string
	Optional  bool
	Available bool
	Path      string
	Version   string
	Detail    string
}

// CheckBinaries resolves each requirement. A binary whose version probe
// fails is still available; the failure is noted in Detail.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, checkBinary(ctx, req))
	}
	return results
}

func checkBinary(ctx context.Context, req Requirement) Status {
	status := Status{Name: req.Name, Command: strings.TrimSpace(req.Command), Optional: req.Optional}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Available = true
	status.Path = resolved
	if req.VersionFlag == "" {
		return status
	}

	probeCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	output, err := exec.CommandContext(probeCtx, resolved, req.VersionFlag).Output()
	if err != nil {
		status.Detail = fmt.Sprintf("version probe: %v", err)
		return status
	}
	status.Version = parseVersion(output)
	return status
}

// parseVersion reads banners such as "ffmpeg version 7.1 Copyright ..." and
// returns the version token, or the whole first line for other formats.
func parseVersion(output []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	if !scanner.Scan() {
		return ""
	}
	line := strings.TrimSpace(scanner.Text())
	fields := strings.Fields(line)
	if len(fields) >= 3 && fields[1] == "version" {
		return fields[2]
	}
	return line
}
