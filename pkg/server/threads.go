package server

import (
	"sort"
	"sync"
	"time"

	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/tasks"
)

// RunRecord is what a thread keeps of a finished run.
type RunRecord struct {
	RunID    string                    `json:"run_id"`
	Request  string                    `json:"request"`
	Answer   string                    `json:"answer"`
	TaskList tasks.List                `json:"task_list"`
	Messages conversation.Conversation `json:"messages"`
	Error    string                    `json:"error,omitempty"`
	Time     time.Time                 `json:"time"`
}

// ThreadSummary is one entry of GET /threads.
type ThreadSummary struct {
	ID        string    `json:"thread_id"`
	Runs      int       `json:"runs"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type thread struct {
	id        string
	createdAt time.Time
	runs      []RunRecord
}

// ThreadStore records runs per thread in memory. Runs never read a thread's
// earlier runs; the store only serves history to clients.
type ThreadStore struct {
	mu      sync.RWMutex
	threads map[string]*thread
	now     func() time.Time
}

func NewThreadStore() *ThreadStore {
	return &ThreadStore{
		threads: map[string]*thread{},
		now:     time.Now,
	}
}

// Append records rec on the thread, creating the thread on first use.
func (s *ThreadStore) Append(threadID string, rec RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t, ok := s.threads[threadID]
	if !ok {
		t = &thread{id: threadID, createdAt: now}
		s.threads[threadID] = t
	}
	if rec.Time.IsZero() {
		rec.Time = now
	}
	rec.Messages = rec.Messages.Clone()
	rec.TaskList = rec.TaskList.Clone()
	t.runs = append(t.runs, rec)
}

// Runs returns a copy of the runs of a thread.
func (s *ThreadStore) Runs(threadID string) ([]RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[threadID]
	if !ok {
		return nil, false
	}
	ret := make([]RunRecord, len(t.runs))
	for i, r := range t.runs {
		r.Messages = r.Messages.Clone()
		r.TaskList = r.TaskList.Clone()
		ret[i] = r
	}
	return ret, true
}

// History concatenates the messages of every run on the thread.
func (s *ThreadStore) History(threadID string) (conversation.Conversation, bool) {
	runs, ok := s.Runs(threadID)
	if !ok {
		return nil, false
	}
	var ret conversation.Conversation
	for _, r := range runs {
		ret = append(ret, r.Messages...)
	}
	return ret, true
}

// List returns the threads, most recently updated first.
func (s *ThreadStore) List() []ThreadSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make([]ThreadSummary, 0, len(s.threads))
	for _, t := range s.threads {
		sum := ThreadSummary{ID: t.id, Runs: len(t.runs), CreatedAt: t.createdAt, UpdatedAt: t.createdAt}
		if n := len(t.runs); n > 0 {
			sum.UpdatedAt = t.runs[n-1].Time
		}
		ret = append(ret, sum)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].UpdatedAt.Equal(ret[j].UpdatedAt) {
			return ret[i].ID < ret[j].ID
		}
		return ret[i].UpdatedAt.After(ret[j].UpdatedAt)
	})
	return ret
}
