package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/favbox/gust/common/config"
	errs "github.com/favbox/gust/common/errors"
	"github.com/favbox/gust/common/timer"
)

// Pool 是有名字的固定尺寸工作协程池，带有界任务队列。
//
// 由 NewPool 自由函数按配置创建，不需要任何继承层次。
type Pool struct {
	name   string
	policy config.FullPolicy

	tasks chan *Task
	quit  chan struct{} // 关闭后排空队列再退出
	force chan struct{} // 关闭后立即退出

	wg       sync.WaitGroup
	shutdown uint32
	quitOnce sync.Once
	forceOne sync.Once
}

// NewPool 按配置创建并启动一个工作协程池。
func NewPool(o *config.Options) *Pool {
	p := &Pool{
		name:   o.ExecutorName,
		policy: o.TaskFullPolicy,
		tasks:  make(chan *Task, o.TaskQueueCapacity),
		quit:   make(chan struct{}),
		force:  make(chan struct{}),
	}
	for i := 0; i < o.CoreSize; i++ {
		p.wg.Add(1)
		go p.worker(fmt.Sprintf("%s-%d", p.name, i))
	}
	return p
}

// Name 返回池的名称。
func (p *Pool) Name() string {
	return p.name
}

// Submit 提交一个任务并返回其句柄。
//
// 队列已满时，默认阻塞至有空位；配置为 FullReject 时返回
// ErrTaskRejected。池关闭后提交同样返回 ErrTaskRejected。
func (p *Pool) Submit(f func()) (*Task, error) {
	if atomic.LoadUint32(&p.shutdown) == 1 {
		return nil, errs.ErrTaskRejected
	}
	t := newTask(f)
	if p.policy == config.FullReject {
		select {
		case p.tasks <- t:
			return t, nil
		default:
			return nil, errs.ErrTaskRejected
		}
	}
	select {
	case p.tasks <- t:
		return t, nil
	case <-p.quit:
		return nil, errs.ErrTaskRejected
	}
}

// Go 提交一个任务，不关心其句柄。
func (p *Pool) Go(f func()) error {
	_, err := p.Submit(f)
	return err
}

func (p *Pool) worker(name string) {
	defer p.wg.Done()
	for {
		select {
		case <-p.force:
			return
		default:
		}

		select {
		case t := <-p.tasks:
			t.run(name)
		case <-p.force:
			return
		case <-p.quit:
			// 优雅关闭：运行完已入队的任务再退出。
			for {
				select {
				case t := <-p.tasks:
					t.run(name)
				case <-p.force:
					return
				default:
					return
				}
			}
		}
	}
}

// Shutdown 发起优雅关闭：停止接收新任务，已入队任务照常运行。
func (p *Pool) Shutdown() {
	atomic.StoreUint32(&p.shutdown, 1)
	p.quitOnce.Do(func() {
		close(p.quit)
	})
}

// ShutdownNow 强制关闭：停止接收新任务，取消所有未开始运行的任务并返回。
func (p *Pool) ShutdownNow() []*Task {
	p.Shutdown()
	p.forceOne.Do(func() {
		close(p.force)
	})

	var cancelled []*Task
	for {
		select {
		case t := <-p.tasks:
			if t.cancel() {
				cancelled = append(cancelled, t)
			}
		default:
			return cancelled
		}
	}
}

// 等待所有工作协程退出，最多等待 timeout。
// 返回是否在时限内终止，以及等待是否被 ctx 中断。
func (p *Pool) awaitTermination(ctx context.Context, timeout time.Duration) (terminated bool, interrupted error) {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	t := timer.AcquireTimer(timeout)
	defer timer.ReleaseTimer(t)

	select {
	case <-done:
		return true, nil
	case <-t.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
