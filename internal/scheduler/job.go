package scheduler

// Task is one unit of work. The worker argument identifies the worker
// executing the task and must be passed to any nested scheduler calls
// (Spawn, TryPop, Wait) made from inside the task body.
//
// The runtime imposes no synchronization on state a task touches: two
// tasks mutating shared data must coordinate themselves. A task that
// panics takes down its worker goroutine; tasks are expected to handle
// their own failures, since a stolen task's failure has no defined
// recipient worker.
type Task func(w *Worker)

// Job wraps a Task behind a stable pointer. The runtime hands jobs around
// strictly by reference: deques store the pointer, and the fork-join
// hand-off protocol decides ownership by comparing pointer identity. The
// creator of a Job keeps it alive until it has been observed as executed
// or stolen; the scheduler never copies or retains job storage beyond
// that.
type Job struct {
	task Task
}

// NewJob wraps task in a schedulable job.
func NewJob(task Task) *Job {
	return &Job{task: task}
}

// Invoke runs the job's task on the given worker.
func (j *Job) Invoke(w *Worker) {
	j.task(w)
}

// Task returns the wrapped task.
func (j *Job) Task() Task {
	return j.task
}
