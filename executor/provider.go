// Package executor 提供带托管生命周期的工作协程池。
//
// 每个 Provider 实例至多创建一个共享、惰性初始化的池，并保证实例
// 关闭时对应的池被妥善关停：先优雅等待在途任务，超时或中断则强制
// 关闭，并取消所有从未开始运行的任务。
package executor

import (
	"context"
	"sync"

	"github.com/favbox/gust/common/config"
	errs "github.com/favbox/gust/common/errors"
	"github.com/favbox/gust/common/glog"
)

// Provider 按需提供一个惰性创建的工作协程池。
//
// PoolFactory 和 OnClose 须在首次调用 Executor 或 Close 之前设置。
type Provider struct {
	// PoolFactory 是池的工厂钩子，在首次调用 Executor 时被调用，
	// 至多一次。为 nil 时使用 NewPool。
	PoolFactory func(o *config.Options) *Pool

	// OnClose 是关闭时的扩展钩子，在池关停之前调用。
	OnClose func()

	opts *config.Options

	mu     sync.Mutex
	pool   *Pool
	closed bool
}

// New 创建一个池提供者。此刻不会创建任何工作协程。
func New(opts ...config.Option) *Provider {
	return &Provider{
		opts: config.NewOptions(opts),
	}
}

// Executor 返回惰性创建的池。
//
// 首次调用触发工厂钩子，结果被缓存并用于后续所有调用。初始化与
// 关闭在同一把锁下串行化：并发的首次访问是安全的，且关闭之后
// 不可能再冒出新池，调用只会返回 ErrProviderClosed。
func (p *Provider) Executor() (*Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errs.ErrProviderClosed
	}
	if p.pool == nil {
		factory := p.PoolFactory
		if factory == nil {
			factory = NewPool
		}
		p.pool = factory(p.opts)
	}
	return p.pool, nil
}

// IsClosed 报告提供者是否已关闭。
func (p *Provider) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close 关闭提供者。幂等，第二次调用是空操作。
//
// 依次执行：触发 OnClose 钩子；若池已创建，则发起优雅关闭并等待至
// 多 TerminationTimeout；超时则强制关闭并取消所有未开始的任务。
func (p *Provider) Close() {
	_ = p.CloseContext(context.Background())
}

// CloseContext 同 Close，但等待可被 ctx 中断。
// 中断会被记录，池随即被强制关闭，返回中断原因。
func (p *Provider) CloseContext(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pool := p.pool
	p.mu.Unlock()

	if p.OnClose != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					glog.SystemLogger().Errorf("执行器 %s 的关闭钩子发生 panic：%v", p.opts.ExecutorName, r)
				}
			}()
			p.OnClose()
		}()
	}

	if pool == nil {
		return nil
	}

	pool.Shutdown()
	terminated, interrupted := pool.awaitTermination(ctx, p.opts.TerminationTimeout)
	if terminated {
		return nil
	}

	if interrupted != nil {
		glog.SystemLogger().Warnf("等待执行器 %s 关闭时被中断：%v", p.opts.ExecutorName, interrupted)
	}
	cancelled := pool.ShutdownNow()
	glog.SystemLogger().Warnf("执行器 %s 已强制关闭，取消了 %d 个未开始的任务", p.opts.ExecutorName, len(cancelled))
	return interrupted
}
