// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/mafiaserver/logger"
)

// Job 一个定时任务。Every > 0 的任务按周期重复，同一任务不会并发执行
type Job struct {
	ID    int64
	Name  string
	At    time.Time
	Every time.Duration
	Run   func()

	running int32
	pos     int
}

// jobHeap orders jobs by their next run time.
type jobHeap []*Job

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(a, b int) bool { return h[a].At.Before(h[b].At) }

func (h jobHeap) Swap(a, b int) {
	h[a], h[b] = h[b], h[a]
	h[a].pos, h[b].pos = a, b
}

func (h *jobHeap) Push(x interface{}) {
	job := x.(*Job)
	job.pos = len(*h)
	*h = append(*h, job)
}

func (h *jobHeap) Pop() interface{} {
	jobs := *h
	last := jobs[len(jobs)-1]
	last.pos = -1
	*h = jobs[:len(jobs)-1]
	return last
}

// Scheduler 基于最小堆的定时器，驱动空闲房间回收等后台任务
type Scheduler struct {
	jobs     jobHeap
	mutex    sync.Mutex
	nextID   int64
	tick     time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewScheduler 以 100ms 精度扫描
func NewScheduler() *Scheduler {
	return NewSchedulerWithTick(100 * time.Millisecond)
}

func NewSchedulerWithTick(tick time.Duration) *Scheduler {
	s := &Scheduler{
		nextID: 1,
		tick:   tick,
		done:   make(chan struct{}),
	}
	go s.loop()
	return s
}

// After runs fn once after delay.
func (s *Scheduler) After(name string, delay time.Duration, fn func()) int64 {
	return s.add(&Job{Name: name, At: time.Now().Add(delay), Run: fn})
}

// Every runs fn every interval, first after one interval. A run still in
// progress when the next one is due is skipped, not doubled.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) int64 {
	return s.add(&Job{Name: name, At: time.Now().Add(interval), Every: interval, Run: fn})
}

func (s *Scheduler) add(job *Job) int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	job.ID = s.nextID
	s.nextID++
	heap.Push(&s.jobs, job)
	return job.ID
}

// Cancel 取消任务，正在执行的回调不受影响
func (s *Scheduler) Cancel(id int64) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, job := range s.jobs {
		if job.ID == id {
			heap.Remove(&s.jobs, job.pos)
			return true
		}
	}
	return false
}

// Len 待执行任务数
func (s *Scheduler) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			for _, job := range s.due(now) {
				go s.run(job)
			}
		case <-s.done:
			return
		}
	}
}

func (s *Scheduler) run(job *Job) {
	if !atomic.CompareAndSwapInt32(&job.running, 0, 1) {
		logger.Log.Warnf("[timer] %s still running, skipping this round", job.Name)
		return
	}
	defer atomic.StoreInt32(&job.running, 0)
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("[timer] %s panicked: %v", job.Name, r)
		}
	}()
	job.Run()
}

// due pops every job whose time has come and requeues periodic ones.
func (s *Scheduler) due(now time.Time) []*Job {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var ready []*Job
	for len(s.jobs) > 0 && !s.jobs[0].At.After(now) {
		job := heap.Pop(&s.jobs).(*Job)
		ready = append(ready, job)
		if job.Every > 0 {
			job.At = now.Add(job.Every)
			heap.Push(&s.jobs, job)
		}
	}
	return ready
}
