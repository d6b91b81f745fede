// Package serialmux provides an abstraction over a serial port with the
// ability for multiple clients to subscribe to the lines it emits and send
// commands to the single device behind it.
package serialmux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"tailscale.com/tsweb"
)

var (
	ErrWriteFailed = errors.New("failed to write to serial port")
	ErrClosed      = errors.New("serial mux closed")
)

// SubscriberBuffer is the channel capacity given to each subscriber. Lines
// arriving while a subscriber's buffer is full are dropped for that
// subscriber only.
const SubscriberBuffer = 64

// SerialMuxInterface is implemented by SerialMux.
type SerialMuxInterface interface {
	// Subscribe creates a channel receiving every line read from the port.
	// The returned ID is used to unsubscribe.
	Subscribe() (string, chan string)
	Unsubscribe(string)
	// SendCommand writes a newline-terminated command to the port.
	SendCommand(string) error
	// Initialise sends each command in order, stopping at the first error.
	Initialise(commands ...string) error
	// Monitor reads lines until the context is cancelled or the port fails.
	Monitor(context.Context) error
	Close() error

	// AttachAdminRoutes registers debugging endpoints on a tsweb debug
	// handler, served under /debug/ to loopback and tailnet peers only.
	AttachAdminRoutes(*tsweb.DebugHandler)
}

// SerialMux fans out lines read from a single serial port to subscribers.
type SerialMux[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex

	linesMu  sync.Mutex
	lines    uint64
	lastLine string
	dropped  uint64
}

var _ SerialMuxInterface = (*SerialMux[SerialPorter])(nil)

// NewSerialMux wraps port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

func (s *SerialMux[T]) isClosing() bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	return s.closing
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string, SubscriberBuffer)
	if s.isClosing() {
		close(ch)
		return id, ch
	}
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

func (s *SerialMux[T]) Initialise(commands ...string) error {
	for _, command := range commands {
		if err := s.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send start command %q: %w", command, err)
		}
	}
	return nil
}

// SendCommand sends a command to the serial port.
func (s *SerialMux[T]) SendCommand(command string) error {
	if s.isClosing() {
		return ErrClosed
	}
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads the port line by line and publishes to subscribers.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// the blocking scan.Scan runs on its own goroutine so the loop below can
	// still observe cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			if s.isClosing() {
				return nil
			}
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if !s.isClosing() {
						return err
					}
				default:
				}
				return nil
			}
			if s.isClosing() {
				return nil
			}
			s.publish(line)
		}
	}
}

func (s *SerialMux[T]) publish(line string) {
	s.linesMu.Lock()
	s.lines++
	s.lastLine = line
	s.linesMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
			// subscriber is behind; drop rather than block the port
			s.linesMu.Lock()
			s.dropped++
			s.linesMu.Unlock()
		}
	}
}

// Stats returns the number of lines read, lines dropped for slow
// subscribers and the most recent line.
func (s *SerialMux[T]) Stats() (lines, dropped uint64, last string) {
	s.linesMu.Lock()
	defer s.linesMu.Unlock()
	return s.lines, s.dropped, s.lastLine
}

// Close closes every subscriber channel and then the port. Further calls
// are no-ops.
func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	if s.closing {
		s.closingMu.Unlock()
		return nil
	}
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subscriberMu.Unlock()
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(debug *tsweb.DebugHandler) {
	debug.HandleFunc("serial-stats", "line counters for the tracker serial port", func(w http.ResponseWriter, r *http.Request) {
		lines, dropped, last := s.Stats()
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "lines: %d\ndropped: %d\nlast: %s\n", lines, dropped, last)
	})

	// API endpoint to write a command to the serial port
	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := s.SendCommand(command); err != nil {
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote command %q to serial port", command))
	})

	// Server-Sent Events of every line coming from the serial port.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
