package config

import (
	"runtime"
	"time"
)

const (
	defaultExecutorName       = "gust-worker"
	defaultTerminationTimeout = 5 * time.Second
	defaultTaskQueueCapacity  = 64
	defaultChunkQueueCapacity = 32
	defaultCommitBufferSize   = 8192
)

// FullPolicy 定义队列已满时写入方的行为。
type FullPolicy int

const (
	// FullBlock 阻塞写入方，直至队列有空位。
	FullBlock FullPolicy = iota
	// FullReject 立即返回队列已满/任务被拒绝的错误。
	FullReject
)

// Option 是用于配置 Options 唯一结构体。
type Option struct {
	F func(o *Options)
}

// Options 是配置项的结构体。
type Options struct {
	// ExecutorName 是执行器名称，用作工作协程的命名前缀，默认 "gust-worker"。
	ExecutorName string

	// CoreSize 是执行器的核心工作协程数，默认为 runtime.GOMAXPROCS(0)。
	CoreSize int

	// TaskQueueCapacity 是执行器任务队列的容量，默认 64。
	TaskQueueCapacity int

	// TaskFullPolicy 是任务队列已满时的策略，默认阻塞提交方。
	TaskFullPolicy FullPolicy

	// TerminationTimeout 是优雅关闭的等待时间，超时则强制关闭，默认 5s。
	TerminationTimeout time.Duration

	// ChunkQueueCapacity 是块输出流队列的容量，默认 32。
	ChunkQueueCapacity int

	// ChunkFullPolicy 是块队列已满时的策略，默认阻塞生产方。
	ChunkFullPolicy FullPolicy

	// CommitBufferSize 是提交流启用缓冲时的默认缓冲区大小，默认 8192。
	CommitBufferSize int
}

func (o *Options) Apply(opts []Option) {
	for _, op := range opts {
		op.F(o)
	}
}

// NewOptions 创建一个默认配置项，并应用指定的自定义选项。
func NewOptions(opts []Option) *Options {
	options := &Options{
		ExecutorName:       defaultExecutorName,
		CoreSize:           runtime.GOMAXPROCS(0),
		TaskQueueCapacity:  defaultTaskQueueCapacity,
		TaskFullPolicy:     FullBlock,
		TerminationTimeout: defaultTerminationTimeout,
		ChunkQueueCapacity: defaultChunkQueueCapacity,
		ChunkFullPolicy:    FullBlock,
		CommitBufferSize:   defaultCommitBufferSize,
	}
	options.Apply(opts)
	return options
}

// WithExecutorName 设置执行器名称。
func WithExecutorName(name string) Option {
	return Option{F: func(o *Options) {
		o.ExecutorName = name
	}}
}

// WithCoreSize 设置执行器的核心工作协程数。
func WithCoreSize(n int) Option {
	return Option{F: func(o *Options) {
		o.CoreSize = n
	}}
}

// WithTaskQueueCapacity 设置执行器任务队列的容量。
func WithTaskQueueCapacity(n int) Option {
	return Option{F: func(o *Options) {
		o.TaskQueueCapacity = n
	}}
}

// WithTaskFullPolicy 设置任务队列已满时的策略。
func WithTaskFullPolicy(p FullPolicy) Option {
	return Option{F: func(o *Options) {
		o.TaskFullPolicy = p
	}}
}

// WithTerminationTimeout 设置优雅关闭的等待时间。
func WithTerminationTimeout(t time.Duration) Option {
	return Option{F: func(o *Options) {
		o.TerminationTimeout = t
	}}
}

// WithChunkQueueCapacity 设置块输出流队列的容量。
func WithChunkQueueCapacity(n int) Option {
	return Option{F: func(o *Options) {
		o.ChunkQueueCapacity = n
	}}
}

// WithChunkFullPolicy 设置块队列已满时的策略。
func WithChunkFullPolicy(p FullPolicy) Option {
	return Option{F: func(o *Options) {
		o.ChunkFullPolicy = p
	}}
}

// WithCommitBufferSize 设置提交流的默认缓冲区大小。小于等于 0 表示禁用缓冲。
func WithCommitBufferSize(n int) Option {
	return Option{F: func(o *Options) {
		o.CommitBufferSize = n
	}}
}
