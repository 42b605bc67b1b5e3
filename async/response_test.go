package async

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	errs "github.com/favbox/gust/common/errors"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

// 记录发送调用的假发送器。
type fakeSender struct {
	mu       sync.Mutex
	sent     []any
	sentErrs []error
	failWith error // 非 nil 时 Send/SendError 返回该错误
}

func (f *fakeSender) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, v)
	return f.failWith
}

func (f *fakeSender) SendError(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentErrs = append(f.sentErrs, err)
	return f.failWith
}

func (f *fakeSender) sentValues() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.sent...)
}

func (f *fakeSender) sentErrors() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.sentErrs...)
}

func waitDone(t *testing.T, r *Response) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("响应未能在时限内进入终态")
	}
}

func TestResponseResumeOnce(t *testing.T) {
	fs := &fakeSender{}
	r := NewResponse(fs)
	assert.Equal(t, StateRunning, r.State())

	assert.Nil(t, r.Suspend())
	assert.Equal(t, StateSuspended, r.State())
	assert.Equal(t, errs.ErrAlreadySuspended, r.Suspend())

	assert.Nil(t, r.Resume("result"))
	waitDone(t, r)
	assert.Equal(t, StateDone, r.State())
	assert.Equal(t, []any{"result"}, fs.sentValues())

	// 后续竞争者收到报告性错误，不产生第二次发送。
	assert.Equal(t, errs.ErrAlreadyResumed, r.Resume("again"))
	assert.Equal(t, errs.ErrAlreadyResumed, r.Cancel())
	assert.Equal(t, 1, len(fs.sentValues()))
}

func TestResponseConcurrentResume(t *testing.T) {
	fs := &fakeSender{}
	r := NewResponse(fs)
	assert.Nil(t, r.Suspend())

	var winners int32
	var g errgroup.Group
	for i := 0; i < 32; i++ {
		i := i
		g.Go(func() error {
			err := r.Resume(i)
			if err == nil {
				atomic.AddInt32(&winners, 1)
				return nil
			}
			if err != errs.ErrAlreadyResumed {
				return err
			}
			return nil
		})
	}
	assert.Nil(t, g.Wait())
	assert.Equal(t, int32(1), winners)
	assert.Equal(t, 1, len(fs.sentValues()))
}

func TestResponseResumeWithoutSuspend(t *testing.T) {
	fs := &fakeSender{}
	r := NewResponse(fs)
	assert.Equal(t, errs.ErrAlreadyResumed, r.Resume("eager"))
	assert.Equal(t, 0, len(fs.sentValues()))
}

func TestResponseResumeError(t *testing.T) {
	fs := &fakeSender{}
	r := NewResponse(fs)
	assert.Nil(t, r.Suspend())
	cause := errs.NewPublic("业务失败")
	assert.Nil(t, r.ResumeError(cause))
	waitDone(t, r)

	got := fs.sentErrors()
	assert.Equal(t, 1, len(got))
	assert.Equal(t, cause, got[0])
}

func TestResponseCancel(t *testing.T) {
	fs := &fakeSender{}
	r := NewResponse(fs)
	assert.Nil(t, r.Suspend())
	assert.Nil(t, r.Cancel())
	waitDone(t, r)

	got := fs.sentErrors()
	assert.Equal(t, 1, len(got))
	e, ok := got[0].(*errs.Error)
	assert.True(t, ok)
	assert.Equal(t, errs.ErrServiceUnavailable, e.Err)
}

func TestResponseCancelRetryAfter(t *testing.T) {
	fs := &fakeSender{}
	r := NewResponse(fs)
	assert.Nil(t, r.Suspend())
	assert.Nil(t, r.CancelRetryAfter(2*time.Second))
	waitDone(t, r)

	e := fs.sentErrors()[0].(*errs.Error)
	assert.Equal(t, errs.ErrServiceUnavailable, e.Err)
	assert.Equal(t, 2*time.Second, e.Meta)
}

func TestResponseTimeoutWithoutHandler(t *testing.T) {
	fs := &fakeSender{}
	r := NewResponse(fs)
	assert.Nil(t, r.Suspend())
	assert.Nil(t, r.SetTimeout(20*time.Millisecond))

	waitDone(t, r)
	got := fs.sentErrors()
	assert.Equal(t, 1, len(got))
	e := got[0].(*errs.Error)
	assert.Equal(t, errs.ErrServiceUnavailable, e.Err)
	assert.Equal(t, errs.ErrTimeout, e.Meta)
}

func TestResponseTimeoutHandlerResolves(t *testing.T) {
	fs := &fakeSender{}
	r := NewResponse(fs)
	assert.Nil(t, r.Suspend())
	assert.Nil(t, r.SetTimeoutHandler(func(r *Response) {
		assert.Nil(t, r.Resume("late-but-fine"))
	}))
	assert.Nil(t, r.SetTimeout(20*time.Millisecond))

	waitDone(t, r)
	assert.Equal(t, []any{"late-but-fine"}, fs.sentValues())
	assert.Equal(t, 0, len(fs.sentErrors()))
}

func TestResponseSetTimeoutRearms(t *testing.T) {
	fs := &fakeSender{}
	r := NewResponse(fs)
	assert.Nil(t, r.Suspend())
	assert.Nil(t, r.SetTimeout(time.Hour))
	// 重设超时覆盖旧值并立即重新计时。
	assert.Nil(t, r.SetTimeout(20*time.Millisecond))
	waitDone(t, r)
	assert.Equal(t, 1, len(fs.sentErrors()))
}

func TestResponseResumeBeatsTimeout(t *testing.T) {
	fs := &fakeSender{}
	r := NewResponse(fs)
	assert.Nil(t, r.Suspend())
	assert.Nil(t, r.SetTimeout(time.Hour))
	assert.Nil(t, r.Resume("fast"))
	waitDone(t, r)
	assert.Equal(t, []any{"fast"}, fs.sentValues())
	assert.Equal(t, 0, len(fs.sentErrors()))
}

func TestResponseSetTimeoutNotSuspended(t *testing.T) {
	r := NewResponse(&fakeSender{})
	assert.Equal(t, errs.ErrNotSuspended, r.SetTimeout(time.Second))
	assert.Equal(t, errs.ErrNotSuspended, r.SetTimeoutHandler(func(*Response) {}))
}

func TestResponseCompletionCallbacks(t *testing.T) {
	fs := &fakeSender{}
	r := NewResponse(fs)
	assert.Nil(t, r.Suspend())

	var order []string
	var mu sync.Mutex
	record := func(name string) CompletionCallback {
		return func(failure error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}
	r.OnCompletion(record("first"))
	r.OnCompletion(record("second"))

	assert.Nil(t, r.Resume("ok"))
	waitDone(t, r)

	// 决议后登记的回调以已知结果立即触发。
	late := make(chan error, 1)
	r.OnCompletion(func(failure error) { late <- failure })
	assert.Nil(t, <-late)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestResponseCompletionObservesWriteFailure(t *testing.T) {
	fs := &fakeSender{failWith: errs.NewPrivate("写入失败")}
	r := NewResponse(fs)
	assert.Nil(t, r.Suspend())

	got := make(chan error, 1)
	r.OnCompletion(func(failure error) { got <- failure })
	assert.Nil(t, r.Resume("doomed"))
	assert.Equal(t, fs.failWith, <-got)
}

func TestResponseCallbackPanicIsolated(t *testing.T) {
	fs := &fakeSender{}
	r := NewResponse(fs)
	assert.Nil(t, r.Suspend())

	fired := make(chan struct{}, 1)
	r.OnCompletion(func(error) { panic("回调炸了") })
	r.OnCompletion(func(error) { fired <- struct{}{} })

	assert.Nil(t, r.Resume("ok"))
	waitDone(t, r)
	select {
	case <-fired:
	default:
		t.Fatal("前一个回调的 panic 不应阻断后续回调")
	}
}

func TestResponseDisconnect(t *testing.T) {
	r := NewResponse(&fakeSender{})

	got := make(chan error, 2)
	r.OnDisconnect(func(err error) { got <- err })
	r.Disconnected(io.ErrUnexpectedEOF)
	assert.Equal(t, io.ErrUnexpectedEOF, <-got)

	// 断开后登记立即触发；重复断开是空操作。
	r.OnDisconnect(func(err error) { got <- err })
	assert.Equal(t, io.ErrUnexpectedEOF, <-got)
	r.Disconnected(io.EOF)
	assert.Equal(t, 0, len(got))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Suspended", StateSuspended.String())
	assert.Equal(t, "Done", StateDone.String())
	assert.Equal(t, "Unknown", State(99).String())
}
