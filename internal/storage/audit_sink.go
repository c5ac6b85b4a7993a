package storage

import "context"

// InvocationWriter позволяет использовать Store как приемник аудита вызовов.
type InvocationWriter interface {
	SaveInvocation(ctx context.Context, rec InvocationRecord) error
}
