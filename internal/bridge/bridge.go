// Package bridge implements the line-delimited JSON protocol between
// the viewer and its host process. Commands arrive on stdin, events
// leave on stdout; log output stays on stderr so the streams never mix.
package bridge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/sunward/terrainview/internal/logger"
)

// CommandType identifies a host command.
type CommandType string

const (
	CmdLoadLocation CommandType = "loadLocation"
	CmdUpdateRadius CommandType = "updateRadius"
	CmdUpdateSun    CommandType = "updateSun"
	CmdToggleSun    CommandType = "toggleSun"
	CmdCleanup      CommandType = "cleanup"
)

// Command is one host instruction. Fields beyond Type are populated
// depending on the command.
type Command struct {
	Type CommandType `json:"type"`

	// loadLocation
	Lat  float64 `json:"lat,omitempty"`
	Lon  float64 `json:"lon,omitempty"`
	Name string  `json:"name,omitempty"`

	// loadLocation, updateRadius
	RadiusKm float64 `json:"radiusKm,omitempty"`

	// updateSun
	Azimuth  float64 `json:"azimuth,omitempty"`
	Altitude float64 `json:"altitude,omitempty"`

	// toggleSun; nil means the field was absent and the current
	// visibility is kept
	Visible *bool `json:"visible,omitempty"`
}

// EventType identifies an event sent back to the host.
type EventType string

const (
	EventReady EventType = "ready"
	EventError EventType = "error"
)

// Event is one message to the host.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`

	// ready
	Name         string  `json:"name,omitempty"`
	Lat          float64 `json:"lat,omitempty"`
	Lon          float64 `json:"lon,omitempty"`
	MinElevation float64 `json:"minElevation,omitempty"`
	MaxElevation float64 `json:"maxElevation,omitempty"`
	Textured     bool    `json:"textured,omitempty"`
}

// DecodeCommand parses and validates one protocol line.
func DecodeCommand(line []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(line, &cmd); err != nil {
		return Command{}, fmt.Errorf("parsing command: %w", err)
	}

	switch cmd.Type {
	case CmdLoadLocation:
		if cmd.Lat < -90 || cmd.Lat > 90 {
			return Command{}, fmt.Errorf("latitude %f out of range", cmd.Lat)
		}
		if cmd.Lon < -180 || cmd.Lon > 180 {
			return Command{}, fmt.Errorf("longitude %f out of range", cmd.Lon)
		}
	case CmdUpdateRadius:
		if cmd.RadiusKm <= 0 {
			return Command{}, fmt.Errorf("radius %f must be positive", cmd.RadiusKm)
		}
	case CmdUpdateSun, CmdToggleSun, CmdCleanup:
	default:
		return Command{}, fmt.Errorf("unknown command type %q", cmd.Type)
	}

	return cmd, nil
}

// Bridge pumps commands in and events out over a pair of streams.
type Bridge struct {
	out      io.Writer
	outMu    sync.Mutex
	commands chan Command
	done     chan struct{}
	closeOne sync.Once
}

// New creates a bridge reading commands from in and writing events to
// out. buffer bounds the command channel; a burst beyond it is dropped
// with a warning rather than stalling the reader.
func New(in io.Reader, out io.Writer, buffer int) *Bridge {
	if buffer <= 0 {
		buffer = 16
	}
	b := &Bridge{
		out:      out,
		commands: make(chan Command, buffer),
		done:     make(chan struct{}),
	}
	go b.readLoop(in)
	return b
}

// Commands returns the channel of decoded host commands. It is closed
// when the input stream ends or the bridge is closed.
func (b *Bridge) Commands() <-chan Command {
	return b.commands
}

func (b *Bridge) readLoop(in io.Reader) {
	defer close(b.commands)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case <-b.done:
			return
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		cmd, err := DecodeCommand(line)
		if err != nil {
			logger.Warn("dropping malformed command", zap.Error(err))
			continue
		}

		select {
		case b.commands <- cmd:
		default:
			logger.Warn("command buffer full, dropping command", zap.String("type", string(cmd.Type)))
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Warn("command stream closed", zap.Error(err))
	}
}

// Send writes one event as a JSON line.
func (b *Bridge) Send(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	b.outMu.Lock()
	defer b.outMu.Unlock()
	if _, err := b.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// SendError reports a failure to the host, logging locally if the
// stream itself is broken.
func (b *Bridge) SendError(msg string) {
	if err := b.Send(Event{Type: EventError, Message: msg}); err != nil {
		logger.Error("failed to send error event", zap.Error(err))
	}
}

// Close stops the read loop. The input reader itself is owned by the
// caller and is not closed here.
func (b *Bridge) Close() {
	b.closeOne.Do(func() { close(b.done) })
}
