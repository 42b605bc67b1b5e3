package stream

import (
	"sync"
	"sync/atomic"

	"github.com/favbox/gust/codec"
	"github.com/favbox/gust/common/config"
	errs "github.com/favbox/gust/common/errors"
	"github.com/favbox/gust/internal/nocopy"
	"github.com/favbox/gust/network"
)

// 流结束标记。类型私有且非零尺寸，地址不会与用户的空结构体重合。
type endMarker struct{ _ byte }

var endOfStream = &endMarker{}

// ChunkedOutput 是有界的块输出流。
//
// 生产方通过 Write 入队独立可序列化的块，响应发送路径通过 CopyTo
// 以 FIFO 顺序排出。生产方和排出方可以运行在不同的工作协程上，
// 队列是两者之间唯一的同步点。
type ChunkedOutput struct {
	noCopy nocopy.NoCopy

	mu        sync.Mutex
	queue     chan any
	policy    config.FullPolicy
	closed    uint32
	closeOnce sync.Once

	abort     chan struct{} // 排出失败后关闭
	abortOnce sync.Once
	failure   error // 排出失败的原因，abort 关闭后有效
}

// NewChunkedOutput 创建一个块输出流。队列容量与满时策略取自 opts。
func NewChunkedOutput(opts ...config.Option) *ChunkedOutput {
	o := config.NewOptions(opts)
	return &ChunkedOutput{
		queue:  make(chan any, o.ChunkQueueCapacity),
		policy: o.ChunkFullPolicy,
		abort:  make(chan struct{}),
	}
}

// Write 将一个块入队。
//
// 队列已满时，默认阻塞至有空位；配置为 FullReject 时立即返回
// ErrQueueFull。关闭后调用返回 ErrOutputClosed；排出失败后调用
// 返回排出失败的原因。
func (co *ChunkedOutput) Write(chunk any) error {
	co.mu.Lock()
	defer co.mu.Unlock()

	if atomic.LoadUint32(&co.closed) == 1 {
		return co.writeError()
	}
	if co.policy == config.FullReject {
		select {
		case co.queue <- chunk:
			return nil
		default:
			return errs.ErrQueueFull
		}
	}
	select {
	case co.queue <- chunk:
		return nil
	case <-co.abort:
		return co.failure
	}
}

// 关闭或排出失败后的写入错误。
func (co *ChunkedOutput) writeError() error {
	select {
	case <-co.abort:
		return co.failure
	default:
		return errs.ErrOutputClosed
	}
}

// Close 入队流结束标记并拒绝后续写入。幂等。
// 排出已失败时不再入队，返回失败原因。
func (co *ChunkedOutput) Close() error {
	co.closeOnce.Do(func() {
		co.mu.Lock()
		atomic.StoreUint32(&co.closed, 1)
		select {
		case co.queue <- endOfStream:
		case <-co.abort:
		}
		co.mu.Unlock()
	})
	select {
	case <-co.abort:
		return co.failure
	default:
		return nil
	}
}

// IsClosed 报告输出流是否已关闭。
func (co *ChunkedOutput) IsClosed() bool {
	return atomic.LoadUint32(&co.closed) == 1
}

// 排出失败：记下原因并唤醒阻塞中的生产方，丢弃积压的块。
// 此后的 Write 和 Close 直接得到失败原因，不会再无声地阻塞。
func (co *ChunkedOutput) abortWith(err error) {
	co.abortOnce.Do(func() {
		atomic.StoreUint32(&co.closed, 1)
		co.failure = err
		close(co.abort)
		for {
			select {
			case <-co.queue:
			default:
				return
			}
		}
	})
}

// CopyTo 按 FIFO 顺序排出队列：每个块经 c 序列化、经 f 成帧后立即
// 刷新至 w，以便块一产出就上线。读到流结束标记后写入结束帧并返回。
//
// 由响应发送路径调用，阻塞至流结束或发生写入错误。序列化或写入
// 失败会使输出流作废，生产方侧的后续操作得到同一个失败原因。
func (co *ChunkedOutput) CopyTo(w network.Writer, c codec.Codec, f Framer) error {
	for {
		chunk := <-co.queue
		if _, ok := chunk.(*endMarker); ok {
			if err := f.WriteEnd(w); err != nil {
				co.abortWith(err)
				return err
			}
			if err := w.Flush(); err != nil {
				co.abortWith(err)
				return err
			}
			return nil
		}
		b, err := c.Marshal(chunk)
		if err != nil {
			co.abortWith(err)
			return err
		}
		if err = f.WriteChunk(w, b); err != nil {
			co.abortWith(err)
			return err
		}
		if err = w.Flush(); err != nil {
			co.abortWith(err)
			return err
		}
	}
}
