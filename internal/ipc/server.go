package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/marcin-skalski/gitdesk/internal/bus"
)

const maxLine = 1 << 20

// Dispatcher is the part of the bus the transport drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd bus.Command) string
	SubscribeAll(fn func(bus.Result)) (unsubscribe func())
	Wait()
}

type Server struct {
	d      Dispatcher
	logger *slog.Logger

	mu  sync.Mutex
	out *bufio.Writer
}

func NewServer(d Dispatcher, out io.Writer, logger *slog.Logger) *Server {
	return &Server{d: d, out: bufio.NewWriter(out), logger: logger}
}

// Serve reads commands from in until EOF or ctx is cancelled, then waits for
// in-flight commands so their results are written before returning.
func (s *Server) Serve(ctx context.Context, in io.Reader) error {
	unsubscribe := s.d.SubscribeAll(s.write)
	defer unsubscribe()
	defer s.d.Wait()

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLine)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}
				return nil
			}
			s.handleLine(ctx, line)
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	if len(line) == 0 {
		return
	}
	cmd, err := DecodeCommand(line)
	if err != nil {
		var ute *UnknownTypeError
		if errors.As(err, &ute) {
			s.logger.Warn("ignoring unknown message", "type", ute.Type)
		} else {
			s.logger.Warn("ignoring malformed message", "error", err)
		}
		s.write(bus.Notice{Category: bus.NoticeValidationFailure, Text: err.Error()})
		return
	}
	id := s.d.Dispatch(ctx, cmd)
	s.logger.Debug("dispatched", "command", fmt.Sprintf("%T", cmd), "request_id", id)
}

func (s *Server) write(r bus.Result) {
	data, err := EncodeResult(r)
	if err != nil {
		s.logger.Error("encode result", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		s.logger.Error("write result", "error", err)
		return
	}
	if err := s.out.Flush(); err != nil {
		s.logger.Error("flush result", "error", err)
	}
}
