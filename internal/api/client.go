package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client es el transporte RPC que usa el store de sesion.
type Client interface {
	Call(ctx context.Context, method string, args ...any) *Response
	SetToken(token string)
	Token() string
	OnSignout(fn func()) (unsubscribe func())
}

// HTTPClient implementa Client enviando cada llamada como POST {baseURL}/{method}
// con los argumentos serializados como array JSON.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	mu    sync.RWMutex
	token string

	subsMu  sync.Mutex
	subs    map[int]func()
	nextSub int
}

// NewHTTPClient construye un cliente apuntando a la API de sesion.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		subs:    make(map[int]func()),
	}
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// OnSignout registra fn para cuando el servidor invalida la sesion.
func (c *HTTPClient) OnSignout(fn func()) func() {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()
	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *HTTPClient) Call(ctx context.Context, method string, args ...any) *Response {
	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return transportError(fmt.Errorf("marshal args: %w", err))
	}

	requestID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+strings.TrimLeft(method, "/"), bytes.NewReader(body))
	if err != nil {
		return transportError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	token := c.Token()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("api call failed",
			zap.String("method", method),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return transportError(fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(fmt.Errorf("read response: %w", err))
	}

	res := decodeEnvelope(resp.StatusCode, respBody)
	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("request_id", requestID),
		zap.Int("status", res.Status),
		zap.Duration("latency", time.Since(start)),
	)

	if res.Status == StatusSessionInvalid && token != "" {
		c.forceSignout(token)
	}
	return res
}

// forceSignout limpia el token solo si sigue siendo el que se envio, para no
// pisar un signin concurrente.
func (c *HTTPClient) forceSignout(sent string) {
	c.mu.Lock()
	if c.token != sent {
		c.mu.Unlock()
		return
	}
	c.token = ""
	c.mu.Unlock()

	c.logger.Info("session invalidated by server")

	c.subsMu.Lock()
	fns := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type envelope struct {
	Status     *int            `json:"status"`
	StatusText string          `json:"status_text"`
	Data       json.RawMessage `json:"data"`
}

// decodeEnvelope usa el status del sobre si existe; si no, el status HTTP.
func decodeEnvelope(httpStatus int, body []byte) *Response {
	var env envelope
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &env) != nil {
		return NewResponse(httpStatus, "", nil)
	}
	status := httpStatus
	if env.Status != nil {
		status = *env.Status
	}
	return NewResponse(status, env.StatusText, env.Data)
}
