package apperr

import (
	"errors"
	"net/http"
)

// Kind - servis katmanının döndürdüğü hata sınıfları. Handler katmanı bunları
// HTTP durum kodlarına çevirir; servisler fiber'a bağımlı değildir.
type Kind int

const (
	Unauthenticated Kind = iota
	Forbidden
	NotFound
	Conflict
	InvalidArgument
	Internal
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Is - hata belirtilen sınıftan mı?
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// HTTPStatus - hata sınıfını HTTP durum koduna çevirir. Sınıflandırılmamış
// hatalar 500 döner.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case InvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
