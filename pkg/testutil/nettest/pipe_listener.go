package nettest

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/serum-errors/go-serum"

	"github.com/warptools/sedar/sdapi"
)

const DefaultTimeout = 5 * time.Second

// PipeListener serves connections created by net.Pipe, so HTTP tests never open a socket.
type PipeListener struct {
	connections chan net.Conn
	ctx         context.Context
	done        chan struct{}
	closeOnce   sync.Once
	Timeout     time.Duration // Sets default deadline for new connections.
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "sedar.pipe" }

// Close may be called more than once; http.Server and test cleanup both close the listener.
//
// Errors: none
func (p *PipeListener) Close() error {
	// closing channel will unblock accept
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

// Errors:
//
//  - sedar-error-connection --
func (p *PipeListener) Accept() (net.Conn, error) {
	select {
	case <-p.done:
		return nil, serum.Error(sdapi.ECodeConnection, serum.WithCause(io.EOF))
	case <-p.ctx.Done():
		return nil, serum.Error(sdapi.ECodeConnection, serum.WithCause(p.ctx.Err()))
	case conn := <-p.connections:
		return conn, nil
	}
}

func (p *PipeListener) Addr() net.Addr { return pipeAddr{} }

// Errors:
//
//  - sedar-error-connection --
func (p *PipeListener) Dial(ctx context.Context) (net.Conn, error) {
	serverConn, clientConn := net.Pipe()
	deadline := time.Now().Add(p.Timeout)
	clientConn.SetDeadline(deadline) // will cause tests to fail if they block
	select {
	case <-ctx.Done():
		return nil, serum.Error(sdapi.ECodeConnection, serum.WithCause(ctx.Err()))
	case <-p.done:
		return nil, serum.Error(sdapi.ECodeConnection, serum.WithMessageLiteral("listener closed"))
	case p.connections <- serverConn:
		return clientConn, nil
	case <-time.After(p.Timeout):
		return nil, serum.Error(sdapi.ECodeConnection, serum.WithMessageLiteral("dial timeout"))
	}
}

// HTTPClient returns a client whose every request dials this listener.
// Keep-alives are off so each request gets a fresh pipe with a fresh deadline.
func (p *PipeListener) HTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return p.Dial(ctx)
			},
			DisableKeepAlives: true,
		},
	}
}

func NewPipeListener(ctx context.Context) *PipeListener {
	return &PipeListener{
		ctx:         ctx,
		connections: make(chan net.Conn),
		done:        make(chan struct{}),
		Timeout:     DefaultTimeout,
	}
}
