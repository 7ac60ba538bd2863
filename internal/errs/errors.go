package errs

import "errors"

// Ошибки домена ticket-feed-service.
var (
	// ErrQuery — сбой слоя данных при выборке страницы (включая разрешение тегов).
	ErrQuery = errors.New("ticket query failed")
	// ErrSessionNotFound — сессия с таким id не открыта.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed — операция над уже закрытой сессией.
	ErrSessionClosed = errors.New("session closed")
)
