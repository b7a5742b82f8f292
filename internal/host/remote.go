package host

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// defaultCallTimeout bounds a runtime call when the context carries no
// deadline of its own.
const defaultCallTimeout = 10 * time.Second

// Remote speaks newline-delimited JSON to the embedded browser process over
// its control socket. Calls are serialized; the browser side answers each
// request with exactly one response line.
type Remote struct {
	mu   sync.Mutex
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

type rpcRequest struct {
	Op      string `json:"op"`
	Session string `json:"session"`
	Dir     string `json:"dir,omitempty"`
	ID      string `json:"id,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

type rpcResponse struct {
	OK    bool   `json:"ok"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// Dial connects to the browser control socket.
func Dial(socketPath string) (*Remote, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to browser control socket %s: %w", socketPath, err)
	}
	return &Remote{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}, nil
}

// LoadExtension implements Runtime.
func (r *Remote) LoadExtension(ctx context.Context, session, dir string) (string, error) {
	resp, err := r.call(ctx, rpcRequest{Op: "load", Session: session, Dir: dir})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UnloadExtension implements Runtime.
func (r *Remote) UnloadExtension(ctx context.Context, session, id string) error {
	_, err := r.call(ctx, rpcRequest{Op: "unload", Session: session, ID: id})
	return err
}

// SetExtensionEnabled implements Runtime.
func (r *Remote) SetExtensionEnabled(ctx context.Context, session, id string, enabled bool) error {
	_, err := r.call(ctx, rpcRequest{Op: "set_enabled", Session: session, ID: id, Enabled: &enabled})
	return err
}

// Close implements Runtime.
func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn.Close()
}

func (r *Remote) call(ctx context.Context, req rpcRequest) (*rpcResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultCallTimeout)
	}
	if err := r.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting socket deadline: %w", err)
	}

	if err := r.enc.Encode(req); err != nil {
		return nil, fmt.Errorf("sending %s request: %w", req.Op, err)
	}

	var resp rpcResponse
	if err := r.dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("reading %s response: %w", req.Op, err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("runtime rejected %s: %s", req.Op, resp.Error)
	}
	return &resp, nil
}
