package main

import (
	"fmt"
	"strconv"
	"time"

	"mediaconv/internal/planner"
	"mediaconv/internal/queue"
)

type jobView struct {
	ID              int64                   `json:"id"`
	State           string                  `json:"state"`
	MediaType       string                  `json:"media_type"`
	Title           string                  `json:"title"`
	SourcePath      string                  `json:"source_path"`
	OutputPath      string                  `json:"output_path,omitempty"`
	AttemptCount    int                     `json:"attempt_count"`
	CancelRequested bool                    `json:"cancel_requested"`
	ClaimedBy       string                  `json:"claimed_by,omitempty"`
	LastError       *queue.JobError         `json:"last_error,omitempty"`
	Series          *queue.SeriesContext    `json:"series,omitempty"`
	Params          *planner.EncodingParams `json:"params,omitempty"`
	Probe           *planner.SourceProbe    `json:"probe,omitempty"`
	CreatedAt       string                  `json:"created_at"`
	UpdatedAt       string                  `json:"updated_at"`
	FinishedAt      string                  `json:"finished_at,omitempty"`
	Attempts        []attemptView           `json:"attempts,omitempty"`
}

type attemptView struct {
	Number      int    `json:"number"`
	Outcome     string `json:"outcome"`
	Reason      string `json:"reason,omitempty"`
	FrameBufs   int    `json:"frame_buffers"`
	BFrames     int    `json:"b_frames"`
	PaddingMode string `json:"padding_mode"`
	WorkerID    string `json:"worker_id"`
	Duration    string `json:"duration"`
	Timestamp   string `json:"timestamp"`
}

func newJobView(job *queue.Job, attempts []queue.Attempt) jobView {
	view := jobView{
		ID:              job.ID,
		State:           string(job.State),
		MediaType:       string(job.MediaType),
		Title:           job.Title,
		SourcePath:      job.SourcePath,
		OutputPath:      job.OutputPath,
		AttemptCount:    job.AttemptCount,
		CancelRequested: job.CancelRequested,
		ClaimedBy:       job.ClaimedBy,
		LastError:       job.LastError,
		Series:          job.Series,
		Params:          job.Params,
		Probe:           job.Probe,
		CreatedAt:       formatTimestamp(job.CreatedAt),
		UpdatedAt:       formatTimestamp(job.UpdatedAt),
		FinishedAt:      formatTimestamp(job.FinishedAt),
	}
	for _, a := range attempts {
		view.Attempts = append(view.Attempts, attemptView{
			Number:      a.Number,
			Outcome:     string(a.Outcome),
			Reason:      string(a.Reason),
			FrameBufs:   a.Params.FrameBuffers,
			BFrames:     a.Params.BFrames,
			PaddingMode: string(a.Params.PaddingMode),
			WorkerID:    a.WorkerID,
			Duration:    a.Duration.Round(time.Second).String(),
			Timestamp:   formatTimestamp(a.Timestamp),
		})
	}
	return view
}

func buildJobListRows(jobs []*queue.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.Title,
			string(job.MediaType),
			stateLabel(job),
			strconv.Itoa(job.AttemptCount),
			errorLabel(job.LastError),
			formatTimestamp(job.UpdatedAt),
		})
	}
	return rows
}

// buildStatsRows lists every state in lifecycle order, including empty ones.
func buildStatsRows(stats map[queue.State]int) [][]string {
	rows := make([][]string, 0, len(queue.AllStates())+1)
	total := 0
	for _, state := range queue.AllStates() {
		count := stats[state]
		total += count
		rows = append(rows, []string{string(state), strconv.Itoa(count)})
	}
	rows = append(rows, []string{"total", strconv.Itoa(total)})
	return rows
}

func stateLabel(job *queue.Job) string {
	if job.CancelRequested && !job.State.IsTerminal() {
		return string(job.State) + " (cancelling)"
	}
	return string(job.State)
}

func errorLabel(err *queue.JobError) string {
	if err == nil {
		return ""
	}
	return string(err.Reason)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatParams(p *planner.EncodingParams) string {
	if p == nil {
		return "not planned"
	}
	return fmt.Sprintf("%dx%d %s pad=%s fb=%d la=%d bf=%d hwdec=%s tonemap=%s",
		p.Width, p.Height, p.Scale, p.PaddingMode, p.FrameBuffers, p.LookAheadDepth, p.BFrames,
		yesNo(p.HardwareDecode), yesNo(p.ToneMap))
}
