package confirm

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const (
	EventRequest  = "confirm_request"
	EventResponse = "confirm_response"
)

// DialTimeout bounds how long Dial waits for the socket.io handshake.
var DialTimeout = 15 * time.Second

// Remote forwards prompts to an operator console over socket.io. Each prompt
// is emitted as a confirm_request carrying an id; the console answers with a
// confirm_response carrying the same id and an "ok" flag.
type Remote struct {
	io      *socket.Socket
	nextID  atomic.Int64
	mu      sync.Mutex
	waiting map[int64]chan bool
}

// RemoteOptions configures Dial.
type RemoteOptions struct {
	Namespace          string
	InsecureSkipVerify bool
}

// Dial connects to the operator console at rawURL.
func Dial(ctx context.Context, rawURL string, o RemoteOptions) (*Remote, error) {
	logger := ctxlog.FromContext(ctx).With("confirmer", "remote", "url", rawURL)
	logger.Info("🔌 Connecting to operator console...")

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("operator console URL %q needs a scheme and host", rawURL)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if o.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(o.Namespace, opts)

	r := &Remote{io: io, waiting: make(map[int64]chan bool)}
	io.On(types.EventName(EventResponse), r.onResponse)

	connectChan := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Operator console connected.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		connectChan <- firstError(errs)
	})
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return r, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(DialTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", DialTimeout)
	}
}

func firstError(args []any) error {
	if len(args) == 0 {
		return fmt.Errorf("connect_error without detail")
	}
	if err, ok := args[0].(error); ok {
		return err
	}
	return fmt.Errorf("%v", args[0])
}

// Confirm implements Confirmer.
func (r *Remote) Confirm(ctx context.Context, prompt string) error {
	id := r.nextID.Add(1)
	ch := make(chan bool, 1)
	r.mu.Lock()
	r.waiting[id] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.waiting, id)
		r.mu.Unlock()
	}()

	ctxlog.FromContext(ctx).Info("⏳ Waiting for operator confirmation...", "prompt", prompt, "id", id)
	r.io.Emit(EventRequest, map[string]any{"id": id, "prompt": prompt})

	select {
	case ok := <-ch:
		if !ok {
			return ErrDeclined
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Remote) onResponse(args ...any) {
	id, ok, valid := decodeResponse(args)
	if !valid {
		return
	}
	r.mu.Lock()
	ch := r.waiting[id]
	r.mu.Unlock()
	if ch != nil {
		select {
		case ch <- ok:
		default:
		}
	}
}

// decodeResponse accepts {"id": <number>, "ok": <bool>}. JSON numbers arrive
// as float64.
func decodeResponse(args []any) (id int64, ok bool, valid bool) {
	if len(args) == 0 {
		return 0, false, false
	}
	m, isMap := args[0].(map[string]any)
	if !isMap {
		return 0, false, false
	}
	switch v := m["id"].(type) {
	case float64:
		id = int64(v)
	case int64:
		id = v
	case int:
		id = int64(v)
	default:
		return 0, false, false
	}
	ok, _ = m["ok"].(bool)
	return id, ok, true
}

// Close disconnects from the operator console.
func (r *Remote) Close() error {
	r.io.Disconnect()
	return nil
}
