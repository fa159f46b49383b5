// Package control provides the operator input surfaces: the serialized
// console, the stdin command listener, the TCP control socket, and the
// config-change watcher. All surfaces feed command lines into one handler
// and report its responses back to the operator.
package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/google/uuid"
)

// HandlerFunc handles one command line from a control surface and returns
// the response to show. Empty means accepted with nothing to say.
type HandlerFunc func(line, source string) string

// Responder normalizes handler responses for the control surfaces. Socket
// clients always get a reply line, so empty responses become "ok".
type Responder struct {
	handle  HandlerFunc
	console *Console
}

// NewResponder wraps handle for use by the control surfaces.
func NewResponder(handle HandlerFunc, console *Console) *Responder {
	return &Responder{handle: handle, console: console}
}

// HandleLine routes one command line and returns the response to send back.
func (r *Responder) HandleLine(line, source string) string {
	response := r.handle(line, source)
	if response == "" {
		return "ok"
	}
	return response
}

// Notice prints a message on the operator console.
func (r *Responder) Notice(message string) {
	r.console.Println(message)
}

// StartStdinListener reads operator command lines from in on a goroutine
// until EOF. Blank lines are skipped; responses other than "ok" are printed.
// The reader cannot be interrupted mid-read, so cancellation takes effect on
// the next line, same as the process exiting out from under it.
func StartStdinListener(ctx context.Context, in io.Reader, responder *Responder) {
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			response := responder.HandleLine(line, "stdin")
			if response != "ok" && response != "" {
				responder.Notice(response)
			}
		}
	}()
}

// Server is the TCP control socket. Each connection is served line by line
// on its own goroutine and every line gets a response line back.
type Server struct {
	ln        net.Listener
	responder *Responder
}

// StartServer listens on address and serves until ctx is cancelled. The
// caller decides whether a startup error is fatal.
func StartServer(ctx context.Context, address string, responder *Responder) (*Server, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("control server listen: %w", err)
	}
	s := &Server{ln: ln, responder: responder}
	go s.acceptLoop(ctx)
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()
	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.serveConn(ctx, conn)
	}
}

// serveConn handles one client. Connections are tagged with a short unique
// source so responses and queued commands stay attributable per client.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	source := "socket:" + uuid.New().String()[:8]
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		response := s.responder.HandleLine(line, source)
		if _, err := fmt.Fprintf(conn, "%s\n", response); err != nil {
			return
		}
	}
}
