package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func newNtfyService(endpoint string, timeout time.Duration) *ntfyService {
	return &ntfyService{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

func (n *ntfyService) NotifyFailure(ctx context.Context, failure Failure) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, "❌ %s failed: %s", jobLabel(failure.Job), failure.Reason)
	if msg := strings.TrimSpace(failure.Message); msg != "" {
		fmt.Fprintf(&builder, "\n%s", msg)
	}
	if failure.Job != nil {
		fmt.Fprintf(&builder, "\nSource: %s", failure.Job.SourcePath)
	}
	fmt.Fprintf(&builder, "\nAttempts: %d", len(failure.Attempts))
	return n.send(ctx, payload{
		title:    "mediaconv - Conversion Failed",
		message:  builder.String(),
		tags:     []string{"mediaconv", "failed", string(failure.Reason)},
		priority: "high",
	})
}

func (n *ntfyService) NotifySuccess(ctx context.Context, success Success) error {
	message := fmt.Sprintf("✅ Ready to watch: %s", jobLabel(success.Job))
	if success.OutputPath != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, success.OutputPath)
	}
	return n.send(ctx, payload{
		title:   "mediaconv - Complete",
		message: message,
		tags:    []string{"mediaconv", "completed"},
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
