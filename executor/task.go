package executor

import (
	"sync/atomic"

	"github.com/favbox/gust/common/glog"
)

const (
	taskPending uint32 = iota
	taskRunning
	taskDone
	taskCancelled
)

// Task 是提交给执行器的一个任务的句柄。
type Task struct {
	f     func()
	state uint32
	done  chan struct{}
}

func newTask(f func()) *Task {
	return &Task{
		f:    f,
		done: make(chan struct{}),
	}
}

// Wait 阻塞至任务完成或被取消。
func (t *Task) Wait() {
	<-t.done
}

// Done 返回任务的完成通道。
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancelled 报告任务是否在开始运行前被取消。
func (t *Task) Cancelled() bool {
	return atomic.LoadUint32(&t.state) == taskCancelled
}

// 在工作协程 worker 上运行任务。已取消的任务不会运行。
// 任务中的 panic 会被捕获并记录，不影响工作协程本身。
func (t *Task) run(worker string) {
	if !atomic.CompareAndSwapUint32(&t.state, taskPending, taskRunning) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			glog.SystemLogger().Errorf("工作协程 %s 的任务发生 panic：%v", worker, r)
		}
		atomic.StoreUint32(&t.state, taskDone)
		close(t.done)
	}()
	t.f()
}

// 取消尚未开始运行的任务。
func (t *Task) cancel() bool {
	if atomic.CompareAndSwapUint32(&t.state, taskPending, taskCancelled) {
		close(t.done)
		return true
	}
	return false
}
