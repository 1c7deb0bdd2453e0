package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/ludo/engine/core"
)

/**
 * @brief A unit of work run by a worker of the job system.
 */
type JobTask struct {
	Name string
	// Run executes on a worker goroutine.
	Run func() error
	// OnComplete receives the result of Run, on the worker goroutine.
	OnComplete func(err error)
}

/**
 * @brief A fixed pool of workers fed through a buffered queue. Used for CPU
 * bound work that never touches the GPU, such as decoding model files.
 */
type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	// guards closed against the queue being closed under a sender
	mutex  sync.RWMutex
	closed bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = fmt.Errorf("job system is shut down")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		core.LogError(ErrNoWorkers.Error())
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		core.LogError(ErrNegativeChannelSize.Error())
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				err := job.Run()
				if err != nil {
					core.LogError("job %s failed: %s", job.Name, err.Error())
				}
				if job.OnComplete != nil {
					job.OnComplete(err)
				}
			}
		}()
	}
}

/**
 * @brief Shuts the job system down once the queued jobs have run.
 */
func (js *JobSystem) Shutdown() error {
	js.mutex.Lock()
	if js.closed {
		js.mutex.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mutex.Unlock()
	js.wg.Wait()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full. Fails once the job system is shut down.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	js.mutex.RLock()
	defer js.mutex.RUnlock()
	if js.closed {
		core.LogError("job %s: %s", jt.Name, ErrJobSystemClosed.Error())
		return ErrJobSystemClosed
	}
	js.jobQueue <- jt
	return nil
}

/**
 * @brief Runs every job and waits for all of them. The errors are joined in
 * submission order.
 */
func (js *JobSystem) RunAll(jobs []JobTask) error {
	errs := make([]error, len(jobs))
	var done sync.WaitGroup
	done.Add(len(jobs))
	for i, job := range jobs {
		i, job := i, job
		onComplete := job.OnComplete
		job.OnComplete = func(err error) {
			if onComplete != nil {
				onComplete(err)
			}
			errs[i] = err
			done.Done()
		}
		if err := js.Submit(job); err != nil {
			errs[i] = fmt.Errorf("job %s: %w", job.Name, err)
			done.Done()
		}
	}
	done.Wait()
	return errors.Join(errs...)
}
