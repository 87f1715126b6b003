package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wardlow/reeve-agent/internal/docstore"
	"github.com/wardlow/reeve-agent/internal/events"
	"github.com/wardlow/reeve-agent/internal/tool"
	"github.com/wardlow/reeve-agent/internal/trace"
)

// tickInterval is how often due tasks are evaluated. One minute matches
// the resolution of the schedule grammar.
const tickInterval = time.Minute

// tasksDoc is the document id the full task list persists under.
const tasksDoc = "scheduled_tasks"

// maxSummaryLen bounds the stored result summary of a firing.
const maxSummaryLen = 200

// fireTimeout bounds a single task firing.
const fireTimeout = 5 * time.Minute

// ErrTaskNotFound is returned when a task id is unknown.
var ErrTaskNotFound = errors.New("task not found")

// Scheduler evaluates recurring tasks on a fixed tick and fires them
// directly against the tool registry.
type Scheduler struct {
	registry *tool.Registry
	docs     *docstore.Store
	bus      *events.Bus
	logger   *slog.Logger

	mu    sync.Mutex
	tasks map[string]*Task
	// removed holds ids deleted in this process, so the merge in
	// persistLocked does not resurrect them from the stored document.
	removed map[string]bool
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// now is swappable for tests.
	now func() time.Time
}

// New creates a scheduler and loads any persisted tasks. bus may be nil.
func New(registry *tool.Registry, docs *docstore.Store, bus *events.Bus, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		registry: registry,
		docs:     docs,
		bus:      bus,
		logger:   logger,
		tasks:    make(map[string]*Task),
		removed:  make(map[string]bool),
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
	s.load()
	return s
}

// Start launches the tick loop. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("scheduler started", "tasks", s.Count())
}

// Stop halts the tick loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runPass(s.now())
		}
	}
}

// Add parses the schedule phrase, registers the task, and persists the
// task list. The task starts enabled.
func (s *Scheduler) Add(name, scheduleText, toolName string, input any, tctx tool.Context) (*Task, error) {
	spec, err := Parse(scheduleText)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("task name is required")
	}
	if _, ok := s.registry.Get(toolName); !ok {
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}

	task := &Task{
		ID:           newTaskID(),
		Name:         name,
		Schedule:     spec,
		ScheduleText: scheduleText,
		Tool:         toolName,
		Input:        input,
		Context:      tctx,
		Enabled:      true,
		CreatedAt:    s.now(),
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	err = s.persistLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.logger.Info("task added", "id", task.ID, "name", task.Name, "schedule", task.ScheduleText, "tool", task.Tool)
	return task, nil
}

// List returns all tasks, newest first.
func (s *Scheduler) List() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Get retrieves a task by id.
func (s *Scheduler) Get(id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t, nil
}

// SetEnabled toggles a task and persists the change.
func (s *Scheduler) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	t.Enabled = enabled
	return s.persistLocked()
}

// Remove deletes a task and persists the change.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(s.tasks, id)
	s.removed[id] = true
	return s.persistLocked()
}

// Count returns the number of registered tasks.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// RunNow fires a task immediately, bypassing its schedule.
func (s *Scheduler) RunNow(id string) error {
	task, err := s.Get(id)
	if err != nil {
		return err
	}
	s.fire(task, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// runPass evaluates every enabled task against now and fires the due
// ones. The task list is persisted once at the end of any pass that
// fired, not per task.
func (s *Scheduler) runPass(now time.Time) {
	s.mu.Lock()
	var due []*Task
	for _, t := range s.tasks {
		if t.Enabled && t.Schedule.Due(now, t.LastRun) {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}

	for _, t := range due {
		s.fire(t, now)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persistLocked(); err != nil {
		s.logger.Error("failed to persist tasks after pass", "error", err)
	}
}

// fire invokes a task's tool and records the outcome on the task. A
// panicking tool is contained to this firing: the task records a failed
// result and the pass continues.
func (s *Scheduler) fire(task *Task, now time.Time) {
	s.bus.Publish(events.Event{Source: events.SourceScheduler, Kind: events.KindTaskFired, Data: map[string]any{
		"task_id": task.ID, "task_name": task.Name, "tool": task.Tool,
	}})
	s.logger.Info("task fired", "id", task.ID, "name", task.Name, "tool", task.Tool)

	result := s.invoke(task)

	s.mu.Lock()
	task.LastRun = now
	task.RunCount++
	task.LastResult = result
	s.mu.Unlock()

	s.bus.Publish(events.Event{Source: events.SourceScheduler, Kind: events.KindTaskDone, Data: map[string]any{
		"task_id": task.ID, "task_name": task.Name, "ok": result.Success,
	}})
	if !result.Success {
		s.logger.Warn("task failed", "id", task.ID, "name", task.Name, "error", result.Error)
	}
}

func (s *Scheduler) invoke(task *Task) (result *TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", "id", task.ID, "name", task.Name, "panic", r)
			result = &TaskResult{Success: false, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	t, ok := s.registry.Get(task.Tool)
	if !ok {
		return &TaskResult{Success: false, Error: "tool not found: " + task.Tool}
	}

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	res := t.Invoke(ctx, task.Input, task.Context)
	if !res.Success {
		return &TaskResult{Success: false, Error: truncate(res.Error)}
	}
	return &TaskResult{Success: true, Summary: truncate(trace.Stringify(res.Data))}
}

// truncate bounds s to maxSummaryLen bytes, backing off to a rune
// boundary so the stored summary stays valid UTF-8.
func truncate(s string) string {
	if len(s) <= maxSummaryLen {
		return s
	}
	n := maxSummaryLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// load reads the persisted task list. A missing document means no tasks;
// a corrupt one is logged and ignored.
func (s *Scheduler) load() {
	var stored []*Task
	err := s.docs.Load(tasksDoc, &stored)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			s.logger.Error("failed to load scheduled tasks", "error", err)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range stored {
		if t.ID != "" {
			s.tasks[t.ID] = t
		}
	}
}

// persistLocked saves the full task list. It reloads the stored document
// first and keeps any task ids it does not know about, so a concurrent
// writer's additions survive. Caller holds s.mu.
func (s *Scheduler) persistLocked() error {
	var stored []*Task
	if err := s.docs.Load(tasksDoc, &stored); err == nil {
		for _, t := range stored {
			if t.ID == "" || s.removed[t.ID] {
				continue
			}
			if _, known := s.tasks[t.ID]; !known {
				s.tasks[t.ID] = t
			}
		}
	}

	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return s.docs.Save(tasksDoc, out)
}

func newTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
