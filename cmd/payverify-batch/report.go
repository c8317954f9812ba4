package main

import (
	"github.com/devkiraa/makeTicket-sub003/internal/async"
	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

type summary struct {
	Scanned     int
	Skipped     int
	Accepted    int
	NeedsReview int
	Blocked     int
	Failed      int
}

func summarize(results []async.BatchResult) summary {
	var s summary
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Failed++
		case r.Outcome == nil || r.Outcome.Submission == nil:
			s.Blocked++
		case r.Outcome.Submission.NeedsReview:
			s.NeedsReview++
		default:
			s.Accepted++
		}
	}
	return s
}

// line is one JSON record per processed screenshot on stdout.
type line struct {
	Path         string             `json:"path"`
	TicketID     string             `json:"ticket_id"`
	SubmissionID string             `json:"submission_id,omitempty"`
	Category     verify.Category    `json:"category,omitempty"`
	BlockReason  verify.BlockReason `json:"block_reason,omitempty"`
	NeedsReview  bool               `json:"needs_review"`
	Errors       []string           `json:"errors,omitempty"`
	Error        string             `json:"error,omitempty"`
}

func resultLine(r async.BatchResult) line {
	l := line{Path: r.Job.Path, TicketID: r.Job.TicketID}
	if r.Err != nil {
		l.Error = r.Err.Error()
		return l
	}
	if r.Outcome == nil {
		return l
	}
	l.Category = r.Outcome.Category
	l.BlockReason = r.Outcome.Decision.Reason
	l.NeedsReview = r.Outcome.Decision.NeedsReview
	l.Errors = r.Outcome.Result.Errors
	if r.Outcome.Submission != nil {
		l.SubmissionID = r.Outcome.Submission.ID.String()
	}
	return l
}
