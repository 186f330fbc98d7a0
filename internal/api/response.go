package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const (
	// StatusTransportError se usa cuando la llamada no llego a obtener respuesta.
	StatusTransportError = 599
	// StatusSessionInvalid indica que el servidor invalido el token de la sesion.
	StatusSessionInvalid = 4401
)

var ErrNoData = errors.New("response has no data")

// Response es el resultado de una llamada remota. Nunca es nil.
type Response struct {
	OK         bool            `json:"-"`
	Status     int             `json:"status"`
	StatusText string          `json:"status_text,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// NewResponse construye una respuesta; OK se deriva del status.
func NewResponse(status int, statusText string, data json.RawMessage) *Response {
	if statusText == "" {
		statusText = StatusText(status)
	}
	return &Response{
		OK:         status >= 200 && status < 300,
		Status:     status,
		StatusText: statusText,
		Data:       data,
	}
}

// Result construye una respuesta 200 serializando data.
func Result(data any) (*Response, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}
	return NewResponse(http.StatusOK, "", raw), nil
}

func transportError(err error) *Response {
	return NewResponse(StatusTransportError, err.Error(), nil)
}

// Decode deserializa Data en v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Data) == 0 || string(r.Data) == "null" {
		return ErrNoData
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// IsUnauthorized reporta 401 o el 4401 de sesion invalidada.
func (r *Response) IsUnauthorized() bool {
	return r != nil && (r.Status == http.StatusUnauthorized || r.Status == StatusSessionInvalid)
}

func (r *Response) String() string {
	return fmt.Sprintf("%d %s", r.Status, r.StatusText)
}

// StatusText agrega los status propios del protocolo a los de net/http.
func StatusText(status int) string {
	switch status {
	case StatusTransportError:
		return "Transport Error"
	case StatusSessionInvalid:
		return "Session Invalid"
	}
	return http.StatusText(status)
}
