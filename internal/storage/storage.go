package storage

import (
	"context"
	"errors"
	"time"
)

// InvocationRecord фиксирует один вызов capability через шлюз.
type InvocationRecord struct {
	RequestID  string
	Capability string
	Status     string
	ErrorKind  string
	DurationMS int64
	TS         time.Time
}

// RuntimeSample снимок ресурсов процесса рантайма.
type RuntimeSample struct {
	PID        int32
	CPUPercent float64
	RSSBytes   uint64
	Threads    int32
	TS         time.Time
}

// InvocationQuery задает фильтры выборки вызовов.
type InvocationQuery struct {
	From       time.Time
	To         time.Time
	Capability string
	Limit      int
}

// Store описывает операции хранилища.
type Store interface {
	SaveInvocation(ctx context.Context, rec InvocationRecord) error
	QueryInvocations(ctx context.Context, q InvocationQuery) ([]InvocationRecord, error)
	SaveSample(ctx context.Context, s RuntimeSample) error
	LatestSample(ctx context.Context) (RuntimeSample, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// ErrNotFound возвращается, когда запрошенной записи нет.
var ErrNotFound = errors.New("record not found")
