package apierror

import (
	"encoding/json"
	"net/http"
)

// Kind identifica la categoría del error para el cliente.
// El cliente decide con esto si re-consultar slots (conflict) o mostrar error duro.
type Kind string

const (
	KindValidation     Kind = "validation_error"
	KindNotFound       Kind = "not_found"
	KindForbidden      Kind = "forbidden"
	KindSlotNotOffered Kind = "slot_not_offered"
	KindConflict       Kind = "conflict"
	KindUnauthorized   Kind = "unauthorized"
	KindRateLimited    Kind = "rate_limited"
	KindInternal       Kind = "internal"
)

// Status devuelve el HTTP status asociado a cada kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindSlotNotOffered:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type Body struct {
	Error Detail `json:"error"`
}

type Detail struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Write responde con el cuerpo estructurado. Para KindInternal el mensaje
// siempre es genérico: el detalle del storage nunca sale al cliente.
func Write(w http.ResponseWriter, kind Kind, message string) {
	if kind == KindInternal || message == "" {
		message = defaultMessage(kind)
	}
	WriteJSON(w, kind.Status(), Body{Error: Detail{Kind: kind, Message: message}})
}

func Unauthorized(w http.ResponseWriter) { Write(w, KindUnauthorized, "unauthorized") }
func Forbidden(w http.ResponseWriter)    { Write(w, KindForbidden, "forbidden") }
func Internal(w http.ResponseWriter)     { Write(w, KindInternal, "") }

// WriteJSON escribe v como JSON con el status dado.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func defaultMessage(kind Kind) string {
	switch kind {
	case KindValidation:
		return "invalid input"
	case KindNotFound:
		return "not found"
	case KindForbidden:
		return "forbidden"
	case KindSlotNotOffered:
		return "slot not offered"
	case KindConflict:
		return "slot already booked"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "too many requests"
	default:
		return "internal error"
	}
}
