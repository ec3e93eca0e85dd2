package pipeline

import (
	"sort"
	"sync"
	"time"
)

// Registry tracks the jobs with a conversion attempt in flight.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]time.Time
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]time.Time)}
}

// TryAcquire marks jobID in flight. It returns false, changing nothing,
// when the job is already in flight.
func (r *Registry) TryAcquire(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[jobID]; ok {
		return false
	}
	r.jobs[jobID] = time.Now()
	return true
}

// Release clears the in-flight mark. Releasing an idle job is a no-op.
func (r *Registry) Release(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
}

// Has reports whether jobID is in flight.
func (r *Registry) Has(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[jobID]
	return ok
}

// Hold runs fn with the registry locked, so no job is acquired or released
// until fn returns. busy reports whether a job was in flight when Hold
// began; active counts those jobs.
func (r *Registry) Hold(fn func(busy func(jobID string) bool, active int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(func(jobID string) bool {
		_, ok := r.jobs[jobID]
		return ok
	}, len(r.jobs))
}

// List returns the in-flight job ids in acquisition order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return r.jobs[ids[i]].Before(r.jobs[ids[j]])
	})
	return ids
}

// Summary is the immediate answer to an extraction request.
type Summary struct {
	JobID          string   `json:"job_id"`
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	Artifacts      []string `json:"artifacts"`
	AlreadyRunning bool     `json:"-"`
}
