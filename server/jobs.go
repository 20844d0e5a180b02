package server

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"schls/core/audio"
	"schls/logger"
	"schls/model"
)

// subscriberBuffer bounds how far a websocket client may fall behind before
// it is dropped.
const subscriberBuffer = 256

// jobState is the live view of a running or finished job.
type jobState struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Codec      string    `json:"codec"`
	OutputPath string    `json:"outputPath"`
	Status     string    `json:"status"`
	Stage      string    `json:"stage,omitempty"`
	Current    int64     `json:"current"`
	Total      int64     `json:"total"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
}

type job struct {
	mu     sync.Mutex
	state  jobState
	cancel context.CancelFunc
	log    []eventMessage
	subs   map[chan eventMessage]struct{}
	done   chan struct{}
}

func newJob(state jobState, cancel context.CancelFunc) *job {
	state.Status = model.DownloadStatusRunning
	state.StartedAt = time.Now()
	return &job{
		state:  state,
		cancel: cancel,
		subs:   make(map[chan eventMessage]struct{}),
		done:   make(chan struct{}),
	}
}

// consume reads the job's event sequence to the end and fans it out.
func (j *job) consume(events <-chan audio.Event) {
	sawDone := false
	for ev := range events {
		if _, ok := ev.(audio.DoneEvent); ok {
			sawDone = true
		}
		j.publish(ev)
	}
	if !sawDone {
		j.publish(audio.DoneEvent{Err: context.Canceled})
	}
	j.finish()
}

func (j *job) publish(ev audio.Event) {
	msg := toMessage(ev)

	j.mu.Lock()
	defer j.mu.Unlock()

	switch e := ev.(type) {
	case audio.StageEvent:
		j.state.Stage = e.Message
	case audio.ProgressEvent:
		if e.HasCurrent() {
			j.state.Current = e.Current
		}
		if e.HasTotal() {
			j.state.Total = e.Total
		}
	case audio.DoneEvent:
		switch {
		case e.Err == nil:
			j.state.Status = model.DownloadStatusCompleted
		case errors.Is(e.Err, context.Canceled):
			j.state.Status = model.DownloadStatusCancelled
			j.state.Error = e.Err.Error()
		default:
			j.state.Status = model.DownloadStatusFailed
			j.state.Error = e.Err.Error()
		}
		if e.Path != "" {
			j.state.OutputPath = e.Path
		}
	}

	j.log = append(j.log, msg)
	for ch := range j.subs {
		select {
		case ch <- msg:
		default:
			logger.Warn("dropping slow event subscriber", logger.String("job", j.state.ID))
			delete(j.subs, ch)
			close(ch)
		}
	}
}

func (j *job) finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for ch := range j.subs {
		close(ch)
	}
	j.subs = nil
	close(j.done)
}

// subscribe returns the events so far and a channel for the rest. The
// channel is nil when the job has already finished.
func (j *job) subscribe() ([]eventMessage, chan eventMessage) {
	j.mu.Lock()
	defer j.mu.Unlock()

	replay := make([]eventMessage, len(j.log))
	copy(replay, j.log)
	if j.subs == nil {
		return replay, nil
	}
	ch := make(chan eventMessage, subscriberBuffer)
	j.subs[ch] = struct{}{}
	return replay, ch
}

func (j *job) unsubscribe(ch chan eventMessage) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.subs[ch]; ok {
		delete(j.subs, ch)
		close(ch)
	}
}

func (j *job) snapshot() jobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *job) finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

type jobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*job
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{jobs: make(map[string]*job)}
}

func (r *jobRegistry) add(j *job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.state.ID] = j
}

func (r *jobRegistry) get(id string) (*job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// list returns snapshots, newest first.
func (r *jobRegistry) list() []jobState {
	r.mu.RLock()
	out := make([]jobState, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool { return out[a].StartedAt.After(out[b].StartedAt) })
	return out
}

func (r *jobRegistry) cancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, j := range r.jobs {
		j.cancel()
	}
}
