// Package async 实现响应的挂起/恢复状态机。
//
// 挂起把请求的完成与接收它的协程解耦：连接保持打开，接收协程归还
// 给容器，应用代码随后在任意协程上通过 Resume/Cancel（或超时）恢复
// 响应。决议恰好发生一次，由状态上的原子比较交换保证。
package async

import (
	"sync"
	"sync/atomic"
	"time"

	errs "github.com/favbox/gust/common/errors"
	"github.com/favbox/gust/common/glog"
	"github.com/favbox/gust/common/timer"
)

// State 表示挂起响应的状态。
type State uint32

const (
	StateRunning State = iota
	StateSuspended
	StateResuming
	StateResumed
	StateTimedOut
	StateCancelled
	StateDone
)

var strStates = []string{
	"Running",
	"Suspended",
	"Resuming",
	"Resumed",
	"TimedOut",
	"Cancelled",
	"Done",
}

func (s State) String() string {
	if int(s) < len(strStates) {
		return strStates[s]
	}
	return "Unknown"
}

// CompletionCallback 在决议结果完整移交传输层之后调用。
// 写入成功时 failure 为 nil，失败时为其原因。
type CompletionCallback func(failure error)

// ConnectionCallback 仅在写入期间客户端异常断开时调用，
// 干净完成的写入绝不触发。
type ConnectionCallback func(err error)

// TimeoutHandler 在挂起超时后调用。处理器可调用 Resume/Cancel 提供
// 真正的决议，与应用代码迟到的 Resume 竞争，先决议者胜出。
type TimeoutHandler func(r *Response)

// ResultSender 是响应发送路径的窄接口，由容器侧实现。
// Send 须在字节完整移交传输层（或失败）后才返回。
type ResultSender interface {
	Send(v any) error
	SendError(err error) error
}

// Response 表示一个挂起的请求，恰好被决议一次。不可复用。
type Response struct {
	state  uint32
	sender ResultSender

	mu             sync.Mutex
	timeout        time.Duration
	timeoutHandler TimeoutHandler
	timerStop      chan struct{}
	completion     []CompletionCallback
	connection     []ConnectionCallback
	notified       bool  // 完成回调已触发
	failure        error // 写入结果，notified 后有效
	disconnected   bool
	disconnectErr  error
	done           chan struct{}
}

// NewResponse 为一次请求创建响应状态机。
func NewResponse(sender ResultSender) *Response {
	return &Response{
		state:  uint32(StateRunning),
		sender: sender,
		done:   make(chan struct{}),
	}
}

// State 返回当前状态。
func (r *Response) State() State {
	return State(atomic.LoadUint32(&r.state))
}

// Done 返回在响应进入终态且所有完成回调触发后关闭的通道。
func (r *Response) Done() <-chan struct{} {
	return r.done
}

// Suspend 挂起响应。每个请求至多挂起一次，重复挂起返回
// ErrAlreadySuspended。挂起后处理例程返回不会关闭底层连接。
func (r *Response) Suspend() error {
	if !atomic.CompareAndSwapUint32(&r.state, uint32(StateRunning), uint32(StateSuspended)) {
		return errs.ErrAlreadySuspended
	}
	return nil
}

// SetTimeout 设置挂起超时并立即重新计时，覆盖之前的值。
// 仅在挂起状态下合法。未设置超时则无限等待。
func (r *Response) SetTimeout(d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() != StateSuspended {
		return errs.ErrNotSuspended
	}
	r.timeout = d
	r.stopTimerLocked()
	if d > 0 {
		stop := make(chan struct{})
		r.timerStop = stop
		go r.watchTimeout(d, stop)
	}
	return nil
}

// SetTimeoutHandler 设置超时处理器，覆盖之前的值。仅在挂起状态下合法。
func (r *Response) SetTimeoutHandler(h TimeoutHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() != StateSuspended {
		return errs.ErrNotSuspended
	}
	r.timeoutHandler = h
	return nil
}

// Resume 以结果值 v 恢复响应。
//
// 仅首个决议者成功；其余竞争者收到 ErrAlreadyResumed——这是报告性
// 而非致命的状况。
func (r *Response) Resume(v any) error {
	return r.resolve(v, nil, StateResumed)
}

// ResumeError 以失败原因 err 恢复响应。同 Resume 的恰好一次语义。
func (r *Response) ResumeError(err error) error {
	return r.resolve(nil, err, StateResumed)
}

// Cancel 取消响应，决议为"服务不可用，请稍后重试"。
// 同 Resume 的恰好一次语义。框架本身不重试，重试由客户端自行决定。
func (r *Response) Cancel() error {
	return r.resolve(nil, errs.New(errs.ErrServiceUnavailable, errs.ErrorTypePublic, nil), StateCancelled)
}

// CancelRetryAfter 取消响应，并附带建议客户端重试的等待时间。
func (r *Response) CancelRetryAfter(retryAfter time.Duration) error {
	return r.resolve(nil, errs.New(errs.ErrServiceUnavailable, errs.ErrorTypePublic, retryAfter), StateCancelled)
}

// OnCompletion 登记一个完成回调。决议后登记的回调仍会以已知的写入
// 结果立即触发一次，不存在漏通知的窗口。回调按登记顺序调用。
func (r *Response) OnCompletion(cb CompletionCallback) {
	r.mu.Lock()
	if !r.notified {
		r.completion = append(r.completion, cb)
		r.mu.Unlock()
		return
	}
	failure := r.failure
	r.mu.Unlock()
	invokeCompletion(cb, failure)
}

// OnDisconnect 登记一个连接回调，仅在客户端异常断开时触发。
func (r *Response) OnDisconnect(cb ConnectionCallback) {
	r.mu.Lock()
	if !r.disconnected {
		r.connection = append(r.connection, cb)
		r.mu.Unlock()
		return
	}
	err := r.disconnectErr
	r.mu.Unlock()
	invokeConnection(cb, err)
}

// Disconnected 由容器在写入期间检测到客户端异常断开时调用。
func (r *Response) Disconnected(err error) {
	r.mu.Lock()
	if r.disconnected {
		r.mu.Unlock()
		return
	}
	r.disconnected = true
	r.disconnectErr = err
	cbs := r.connection
	r.connection = nil
	r.mu.Unlock()

	for _, cb := range cbs {
		invokeConnection(cb, err)
	}
}

// 决议核心：状态上的比较交换保证恰好一次，随后写出结果并触发完成回调。
func (r *Response) resolve(v any, failure error, terminal State) error {
	if !atomic.CompareAndSwapUint32(&r.state, uint32(StateSuspended), uint32(StateResuming)) &&
		!atomic.CompareAndSwapUint32(&r.state, uint32(StateTimedOut), uint32(StateResuming)) {
		return errs.ErrAlreadyResumed
	}
	r.mu.Lock()
	r.stopTimerLocked()
	r.mu.Unlock()

	// 先写传输层，完成回调观察写入结果。
	var werr error
	if failure != nil {
		werr = r.sender.SendError(failure)
	} else {
		werr = r.sender.Send(v)
	}
	atomic.StoreUint32(&r.state, uint32(terminal))
	r.complete(werr)
	return nil
}

// 触发完成回调并进入终态。恰好执行一次。
func (r *Response) complete(failure error) {
	r.mu.Lock()
	r.notified = true
	r.failure = failure
	cbs := r.completion
	r.completion = nil
	r.mu.Unlock()

	for _, cb := range cbs {
		invokeCompletion(cb, failure)
	}
	atomic.StoreUint32(&r.state, uint32(StateDone))
	close(r.done)
}

// 超时观察者。计时器触发时响应仍在挂起态则转入超时态。
func (r *Response) watchTimeout(d time.Duration, stop chan struct{}) {
	t := timer.AcquireTimer(d)
	defer timer.ReleaseTimer(t)

	select {
	case <-t.C:
	case <-stop:
		return
	}

	if !atomic.CompareAndSwapUint32(&r.state, uint32(StateSuspended), uint32(StateTimedOut)) {
		return
	}

	r.mu.Lock()
	h := r.timeoutHandler
	r.mu.Unlock()

	if h == nil {
		// 无处理器：自动决议为服务不可用，元信息标明超时原因。
		_ = r.resolve(nil, errs.New(errs.ErrServiceUnavailable, errs.ErrorTypePublic, errs.ErrTimeout), StateResumed)
		return
	}
	defer func() {
		if p := recover(); p != nil {
			glog.SystemLogger().Errorf("超时处理器发生 panic：%v", p)
		}
	}()
	h(r)
}

func (r *Response) stopTimerLocked() {
	if r.timerStop != nil {
		close(r.timerStop)
		r.timerStop = nil
	}
}

// 回调中的异常被捕获并记录，不影响其他回调和响应自身的状态。
func invokeCompletion(cb CompletionCallback, failure error) {
	defer func() {
		if p := recover(); p != nil {
			glog.SystemLogger().Errorf("完成回调发生 panic：%v", p)
		}
	}()
	cb(failure)
}

func invokeConnection(cb ConnectionCallback, err error) {
	defer func() {
		if p := recover(); p != nil {
			glog.SystemLogger().Errorf("连接回调发生 panic：%v", p)
		}
	}()
	cb(err)
}
