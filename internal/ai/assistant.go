package ai

import (
	"context"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/profile"
)

// Note is a drafted application message for a posting. It never changes the posting's score.
type Note struct {
	Message    string
	Highlights []string
	Raw        string
}

type Drafter interface {
	Draft(ctx context.Context, p *profile.Profile, posting *jobs.Scored) (*Note, error)
}
