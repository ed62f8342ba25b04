package job

import (
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"rostercal/internal/model"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Job tracks one sync run: status, append-only log transcript, and the
// terminal result or first fatal message. Per-event skips show up only
// in the transcript, never in the terminal status.
type Job struct {
	ID        string            `json:"id"`
	Status    Status            `json:"status"`
	Log       []string          `json:"log"`
	Result    *model.SyncResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (j Job) finished() bool {
	return j.Status == StatusDone || j.Status == StatusError
}

// Store tracks sync runs. Implementations must be safe for concurrent
// use: runs execute on their own goroutines and only the owning run
// writes to its job, but status polling reads from request handlers.
type Store interface {
	// Create registers a new pending job and returns its ID.
	Create() string

	// Get returns a snapshot copy of the job.
	Get(id string) (Job, bool)

	SetStatus(id string, st Status)
	AppendLog(id string, line string)

	// SetResult records the aggregate counts and marks the job done.
	SetResult(id string, res model.SyncResult)

	// Fail records the first fatal message and marks the job errored.
	Fail(id string, msg string)

	// Expire drops finished jobs whose last update is older than maxAge,
	// returning how many were removed. Sweeping is an explicit call by
	// the scheduler, not an ambient timer.
	Expire(maxAge time.Duration) int
}

// MemoryStore is the in-process Store used by the server; one process,
// one registry, no persistence.
type MemoryStore struct {
	mu   gosync.Mutex
	jobs map[string]*Job
	now  func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

func (s *MemoryStore) Create() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	now := s.now()
	s.jobs[id] = &Job{
		ID:        id,
		Status:    StatusPending,
		Log:       []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id
}

func (s *MemoryStore) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}

	// Snapshot: callers must not observe later mutations.
	out := *j
	out.Log = append([]string(nil), j.Log...)
	if j.Result != nil {
		res := *j.Result
		out.Result = &res
	}
	return out, true
}

func (s *MemoryStore) SetStatus(id string, st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status = st
		j.UpdatedAt = s.now()
	}
}

func (s *MemoryStore) AppendLog(id string, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Log = append(j.Log, line)
		j.UpdatedAt = s.now()
	}
}

func (s *MemoryStore) SetResult(id string, res model.SyncResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Result = &res
		j.Status = StatusDone
		j.UpdatedAt = s.now()
	}
}

func (s *MemoryStore) Fail(id string, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Error = msg
		j.Status = StatusError
		j.UpdatedAt = s.now()
	}
}

func (s *MemoryStore) Expire(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for id, j := range s.jobs {
		if j.finished() && j.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}
