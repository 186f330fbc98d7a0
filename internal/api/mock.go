package api

import (
	"context"
	"sync"
)

// MockCall registra una llamada hecha al MockClient.
type MockCall struct {
	Method string
	Args   []any
	Token  string
}

// MockClient permite tests sin servidor. Responses se indexa por metodo;
// un metodo sin respuesta configurada devuelve 404.
type MockClient struct {
	mu        sync.Mutex
	Responses map[string]*Response
	Calls     []MockCall
	token     string
	subs      []func()
}

func NewMockClient() *MockClient {
	return &MockClient{Responses: make(map[string]*Response)}
}

// Respond configura la respuesta para method.
func (m *MockClient) Respond(method string, res *Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[method] = res
}

func (m *MockClient) Call(_ context.Context, method string, args ...any) *Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args, Token: m.token})
	if res, ok := m.Responses[method]; ok && res != nil {
		return res
	}
	return NewResponse(404, "", nil)
}

func (m *MockClient) SetToken(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

func (m *MockClient) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *MockClient) OnSignout(fn func()) func() {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	idx := len(m.subs) - 1
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.subs[idx] = nil
		m.mu.Unlock()
	}
}

// TriggerSignout simula una invalidacion de sesion iniciada por el servidor.
func (m *MockClient) TriggerSignout() {
	m.mu.Lock()
	m.token = ""
	fns := append([]func(){}, m.subs...)
	m.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
}

// LastCall devuelve la ultima llamada registrada.
func (m *MockClient) LastCall() (MockCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return MockCall{}, false
	}
	return m.Calls[len(m.Calls)-1], true
}
