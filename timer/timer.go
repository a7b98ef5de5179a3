// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Task is one scheduled callback. Interval > 0 makes it repeat.
type Task struct {
	ID       int64
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	task := x.(*Task)
	task.index = len(*q)
	*q = append(*q, task)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*q = old[:n-1]
	return task
}

// TimerManager runs callbacks from a min-heap ordered by deadline. One
// goroutine sleeps until the earliest deadline; callbacks run on their own
// goroutines.
type TimerManager struct {
	queue  taskQueue
	mutex  sync.Mutex
	nextID int64
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func NewTimerManager() *TimerManager {
	m := &TimerManager{
		nextID: 1,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	heap.Init(&m.queue)
	go m.process()
	return m
}

// AddTimer schedules callback after delay, then every interval if > 0.
func (m *TimerManager) AddTimer(delay, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	task := &Task{
		ID:       m.nextID,
		Execute:  time.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextID++
	heap.Push(&m.queue, task)
	m.mutex.Unlock()

	m.poke()
	return task.ID
}

// Every is AddTimer with the first run one interval from now.
func (m *TimerManager) Every(interval time.Duration, callback func()) int64 {
	return m.AddTimer(interval, interval, callback)
}

func (m *TimerManager) RemoveTimer(id int64) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, task := range m.queue {
		if task.ID == id {
			heap.Remove(&m.queue, task.index)
			return true
		}
	}
	return false
}

func (m *TimerManager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Stop ends the scheduler; pending tasks never run.
func (m *TimerManager) Stop() {
	m.once.Do(func() { close(m.done) })
}

func (m *TimerManager) poke() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// due pops every task whose deadline passed and reschedules repeating ones.
// It returns the wait until the next deadline, or -1 when the heap is empty.
func (m *TimerManager) due(now time.Time) ([]func(), time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var callbacks []func()
	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			return callbacks, task.Execute.Sub(now)
		}
		heap.Pop(&m.queue)
		callbacks = append(callbacks, task.Callback)

		if task.Interval > 0 {
			task.Execute = now.Add(task.Interval)
			heap.Push(&m.queue, task)
		}
	}
	return callbacks, -1
}

func (m *TimerManager) process() {
	t := time.NewTimer(time.Hour)
	defer t.Stop()

	for {
		callbacks, wait := m.due(time.Now())
		for _, cb := range callbacks {
			go cb()
		}

		if wait < 0 {
			wait = time.Hour
		}
		t.Reset(wait)

		select {
		case <-t.C:
		case <-m.wake:
		case <-m.done:
			return
		}
	}
}
