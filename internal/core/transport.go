package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	errInvalidArguments = errors.New("invalid arguments")
	errTransportExists  = errors.New("transport already registered")
)

// TransportAdapter определяет жизненный цикл входного транспорта шлюза.
type TransportAdapter interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// TransportManager запускает транспорты в порядке регистрации и
// останавливает в обратном.
type TransportManager struct {
	mu         sync.Mutex
	order      []string
	transports map[string]TransportAdapter
}

// NewTransportManager создает пустой менеджер транспортов.
func NewTransportManager() *TransportManager {
	return &TransportManager{transports: make(map[string]TransportAdapter)}
}

// Register добавляет транспорт; имена должны быть уникальны.
func (m *TransportManager) Register(adapter TransportAdapter) error {
	if adapter == nil {
		return fmt.Errorf("transport is nil: %w", errInvalidArguments)
	}
	name := adapter.Name()
	if name == "" {
		return fmt.Errorf("transport name is empty: %w", errInvalidArguments)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.transports[name]; exists {
		return fmt.Errorf("%s: %w", name, errTransportExists)
	}
	m.transports[name] = adapter
	m.order = append(m.order, name)
	return nil
}

func (m *TransportManager) snapshot() []TransportAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]TransportAdapter, 0, len(m.order))
	for _, name := range m.order {
		list = append(list, m.transports[name])
	}
	return list
}

// StartAll запускает все транспорты. При ошибке уже запущенные
// транспорты останавливаются.
func (m *TransportManager) StartAll(ctx context.Context) error {
	list := m.snapshot()
	for i, tr := range list {
		if err := tr.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = list[j].Stop(ctx)
			}
			return fmt.Errorf("start transport %s: %w", tr.Name(), err)
		}
	}
	return nil
}

// StopAll останавливает все транспорты и возвращает объединенную ошибку.
func (m *TransportManager) StopAll(ctx context.Context) error {
	list := m.snapshot()
	var errs []error
	for i := len(list) - 1; i >= 0; i-- {
		if err := list[i].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop transport %s: %w", list[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

