package idp

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"
)

// CallbackTimeout is how long to wait for the identity provider redirect.
const CallbackTimeout = 10 * time.Minute

//go:embed templates/landing_success.html
var landingSuccessHTML string

//go:embed templates/landing_error.html
var landingErrorHTML string

// CallbackServer is a temporary local HTTP server that receives the
// identity provider redirect during login. It starts, waits for a single
// request on the callback route, then shuts down.
type CallbackServer struct {
	port      int
	path      string
	server    *http.Server
	listener  net.Listener
	resultCh  chan string
	errorCh   chan error
	once      sync.Once
	serverURL string
}

// NewCallbackServer creates a callback server for the given port and
// callback route. Port 0 lets the OS pick a free one.
func NewCallbackServer(port int, path string) *CallbackServer {
	return &CallbackServer{
		port:     port,
		path:     path,
		resultCh: make(chan string, 1),
		errorCh:  make(chan error, 1),
	}
}

// Start begins listening and returns the externally visible callback base
// URL to embed in the authorization request. The server stops when the
// context is cancelled.
func (s *CallbackServer) Start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.serverURL = fmt.Sprintf("http://localhost:%d", s.port)

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return s.serverURL + s.path, nil
}

// WaitForCallback blocks until the redirect arrives and returns the full
// callback URL, query string included, exactly as the browser requested it.
func (s *CallbackServer) WaitForCallback(ctx context.Context) (string, error) {
	select {
	case callbackURL := <-s.resultCh:
		return callbackURL, nil
	case err := <-s.errorCh:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

// processCallback runs exactly once via sync.Once. It reconstructs the
// full callback URL for the waiter and renders a landing page.
func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()
	callbackURL := s.serverURL + s.path
	if r.URL.RawQuery != "" {
		callbackURL += "?" + r.URL.RawQuery
	}

	var tmpl *template.Template
	var data interface{}

	if errCode := query.Get("error"); errCode != "" {
		tmpl = template.Must(template.New("error").Parse(landingErrorHTML))
		data = map[string]string{
			"Error":       errCode,
			"Description": query.Get("error_description"),
		}
	} else {
		tmpl = template.Must(template.New("success").Parse(landingSuccessHTML))
		data = map[string]string{}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}

	select {
	case s.resultCh <- callbackURL:
	default:
	}

	// Give the response time to flush before tearing the server down.
	go func() {
		time.Sleep(1 * time.Second)
		s.Stop()
	}()
}

// Stop gracefully shuts down the callback server.
func (s *CallbackServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// GetPort returns the port the server is listening on.
func (s *CallbackServer) GetPort() int {
	return s.port
}
