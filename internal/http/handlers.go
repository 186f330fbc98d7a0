package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"appsession/internal/api"
)

var errMissingArg = errors.New("missing argument")

// respond escribe el sobre {status, status_text, data}. El status propio 4401
// viaja como HTTP 401; el resto coincide con el status HTTP.
func respond(c *gin.Context, status int, data any) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			status = http.StatusInternalServerError
		} else {
			raw = encoded
		}
	}
	c.JSON(httpStatus(status), api.NewResponse(status, "", raw))
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(httpStatus(status), api.NewResponse(status, message, nil))
}

func httpStatus(status int) int {
	if status == api.StatusSessionInvalid {
		return http.StatusUnauthorized
	}
	if status < 100 || status > 599 {
		return http.StatusOK
	}
	return status
}

// rpcArgs es la lista de argumentos posicionales de una llamada.
type rpcArgs []json.RawMessage

// bindArgs lee el cuerpo como array JSON; un cuerpo vacio equivale a [].
func bindArgs(c *gin.Context) (rpcArgs, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(body)) == "" {
		return rpcArgs{}, nil
	}
	var args rpcArgs
	if err := json.Unmarshal(body, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a json array: %w", err)
	}
	return args, nil
}

// decode deserializa el argumento i en v. Un argumento null o ausente
// devuelve errMissingArg.
func (a rpcArgs) decode(i int, v any) error {
	if i >= len(a) || len(a[i]) == 0 || string(a[i]) == "null" {
		return errMissingArg
	}
	return json.Unmarshal(a[i], v)
}

func (a rpcArgs) str(i int) (string, error) {
	var s string
	if err := a.decode(i, &s); err != nil {
		return "", err
	}
	return s, nil
}
