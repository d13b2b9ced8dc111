package progress

// Status enum untuk Job
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is one trackable unit of work. Tag is stable across repeated
// updates within a single analysis run; Name is the human label.
type Job struct {
	Tag      string `json:"tag"`
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"` // 0-100
}

// Progress is an ordered list of Jobs plus the derived mean percentage.
// One instance is owned by a single run; producers build small snapshots
// and merge them in, they never mutate Jobs in place.
type Progress struct {
	Jobs            []Job `json:"jobs"`
	TotalPercentage int   `json:"total_percentage"`
}

func New() *Progress {
	return &Progress{}
}

// Snapshot builds a one-job Progress, convenient for producers.
func Snapshot(jobs ...Job) *Progress {
	return &Progress{Jobs: jobs}
}

// Merge applies incoming on top of p. A Job whose Tag already exists
// replaces the old one in its original position; unknown Tags are
// appended in incoming order. Jobs are never removed. Merging nil or an
// empty Progress leaves p untouched.
func (p *Progress) Merge(incoming *Progress) {
	if incoming == nil || len(incoming.Jobs) == 0 {
		return
	}
	for _, in := range incoming.Jobs {
		replaced := false
		for i := range p.Jobs {
			if p.Jobs[i].Tag == in.Tag {
				p.Jobs[i] = in
				replaced = true
				break
			}
		}
		if !replaced {
			p.Jobs = append(p.Jobs, in)
		}
	}
	p.recompute()
}

func (p *Progress) recompute() {
	if len(p.Jobs) == 0 {
		p.TotalPercentage = 0
		return
	}
	sum := 0
	for _, j := range p.Jobs {
		sum += j.Progress
	}
	p.TotalPercentage = sum / len(p.Jobs)
}

// Sink receives progress snapshots; the last call is the current truth.
type Sink interface {
	Report(p *Progress)
}

// SinkFunc adapts a func to Sink.
type SinkFunc func(p *Progress)

func (f SinkFunc) Report(p *Progress) { f(p) }

// Tracker pairs an accumulator with the caller's sink. Update merges a
// snapshot and pushes the merged view out. Not safe for concurrent use;
// the orchestrator is the single writer per run.
type Tracker struct {
	acc  *Progress
	sink Sink
}

func NewTracker(sink Sink) *Tracker {
	return &Tracker{acc: New(), sink: sink}
}

func (t *Tracker) Update(snapshot *Progress) {
	t.acc.Merge(snapshot)
	if t.sink != nil {
		t.sink.Report(t.acc)
	}
}

// UpdateJob is shorthand for merging a single job.
func (t *Tracker) UpdateJob(tag, name string, status Status, pct int) {
	t.Update(Snapshot(Job{Tag: tag, Name: name, Status: status, Progress: pct}))
}

// Current returns the accumulated view.
func (t *Tracker) Current() *Progress { return t.acc }
