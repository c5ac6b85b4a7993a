package core

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind стабильный код ошибки, на который клиент может ветвиться.
type ErrorKind string

const (
	KindInvalidRequest       ErrorKind = "InvalidRequest"
	KindConnectorUnavailable ErrorKind = "ConnectorUnavailable"
	KindProviderFailure      ErrorKind = "ProviderFailure"
)

// HTTPStatus возвращает HTTP-статус по умолчанию для вида ошибки.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindConnectorUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error нормализованная ошибка шлюза.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	Err     error
}

// NewError создает ошибку заданного вида.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf создает ошибку с форматированным сообщением.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError сохраняет причину для errors.Is/As.
func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails добавляет детали к ошибке.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// AsError приводит произвольную ошибку к *Error; ошибки без вида считаются ProviderFailure.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return WrapError(KindProviderFailure, err.Error(), err)
}

// KindOf возвращает вид ошибки.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsError(err).Kind
}
