package bridge

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sunward/terrainview/internal/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithFileConfig("error", logger.FileConfig{}, false)
	os.Exit(m.Run())
}

func boolPtr(b bool) *bool { return &b }

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Command
		wantErr bool
	}{
		{
			name: "load location",
			line: `{"type":"loadLocation","lat":37.7749,"lon":-122.4194,"radiusKm":5}`,
			want: Command{Type: CmdLoadLocation, Lat: 37.7749, Lon: -122.4194, RadiusKm: 5},
		},
		{
			name: "load location with name",
			line: `{"type":"loadLocation","lat":46.5197,"lon":6.6323,"name":"Lausanne"}`,
			want: Command{Type: CmdLoadLocation, Lat: 46.5197, Lon: 6.6323, Name: "Lausanne"},
		},
		{
			name: "update radius",
			line: `{"type":"updateRadius","radiusKm":10}`,
			want: Command{Type: CmdUpdateRadius, RadiusKm: 10},
		},
		{
			name: "update sun",
			line: `{"type":"updateSun","azimuth":135,"altitude":45}`,
			want: Command{Type: CmdUpdateSun, Azimuth: 135, Altitude: 45},
		},
		{
			name: "toggle sun",
			line: `{"type":"toggleSun","visible":true}`,
			want: Command{Type: CmdToggleSun, Visible: boolPtr(true)},
		},
		{
			name: "toggle sun off",
			line: `{"type":"toggleSun","visible":false}`,
			want: Command{Type: CmdToggleSun, Visible: boolPtr(false)},
		},
		{
			name: "toggle sun without visible",
			line: `{"type":"toggleSun"}`,
			want: Command{Type: CmdToggleSun},
		},
		{
			name: "cleanup",
			line: `{"type":"cleanup"}`,
			want: Command{Type: CmdCleanup},
		},
		{name: "not json", line: `loadLocation 37 -122`, wantErr: true},
		{name: "unknown type", line: `{"type":"selfDestruct"}`, wantErr: true},
		{name: "latitude out of range", line: `{"type":"loadLocation","lat":91,"lon":0}`, wantErr: true},
		{name: "longitude out of range", line: `{"type":"loadLocation","lat":0,"lon":-181}`, wantErr: true},
		{name: "non-positive radius", line: `{"type":"updateRadius","radiusKm":0}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCommand([]byte(tt.line))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeCommand(%q) succeeded, want error", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeCommand(%q): %v", tt.line, err)
			}
			// Compare the pointer field by value, the rest directly
			if (got.Visible == nil) != (tt.want.Visible == nil) ||
				(got.Visible != nil && *got.Visible != *tt.want.Visible) {
				t.Errorf("DecodeCommand(%q) visible = %v, want %v", tt.line, got.Visible, tt.want.Visible)
			}
			got.Visible, tt.want.Visible = nil, nil
			if got != tt.want {
				t.Errorf("DecodeCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestBridgeDeliversCommands(t *testing.T) {
	in := strings.NewReader(
		`{"type":"loadLocation","lat":51.5,"lon":-0.12,"radiusKm":5}` + "\n" +
			`this line is garbage` + "\n" +
			"\n" +
			`{"type":"cleanup"}` + "\n",
	)
	b := New(in, io.Discard, 16)
	defer b.Close()

	var got []Command
	for cmd := range b.Commands() {
		got = append(got, cmd)
	}

	// Garbage and blank lines are dropped, valid commands flow through
	if len(got) != 2 {
		t.Fatalf("got %d commands, want 2: %+v", len(got), got)
	}
	if got[0].Type != CmdLoadLocation || got[0].Lat != 51.5 {
		t.Errorf("first command = %+v", got[0])
	}
	if got[1].Type != CmdCleanup {
		t.Errorf("second command = %+v", got[1])
	}
}

func TestBridgeChannelClosesOnEOF(t *testing.T) {
	b := New(strings.NewReader(""), io.Discard, 16)
	defer b.Close()

	select {
	case _, ok := <-b.Commands():
		if ok {
			t.Error("expected closed channel, got a command")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("commands channel never closed")
	}
}

// syncBuffer serializes writes so the pump goroutine and test body can
// share it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestBridgeSendsEvents(t *testing.T) {
	out := &syncBuffer{}
	b := New(strings.NewReader(""), out, 16)
	defer b.Close()

	if err := b.Send(Event{
		Type:         EventReady,
		Lat:          27.9881,
		Lon:          86.925,
		MinElevation: 4200,
		MaxElevation: 8848,
		Textured:     true,
	}); err != nil {
		t.Fatal(err)
	}
	b.SendError("tile fetch failed")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d event lines, want 2", len(lines))
	}

	var ready Event
	if err := json.Unmarshal([]byte(lines[0]), &ready); err != nil {
		t.Fatalf("ready event not valid JSON: %v", err)
	}
	if ready.Type != EventReady || ready.MaxElevation != 8848 || !ready.Textured {
		t.Errorf("ready event = %+v", ready)
	}

	var errEv Event
	if err := json.Unmarshal([]byte(lines[1]), &errEv); err != nil {
		t.Fatalf("error event not valid JSON: %v", err)
	}
	if errEv.Type != EventError || errEv.Message != "tile fetch failed" {
		t.Errorf("error event = %+v", errEv)
	}
}

func TestBridgeDropsOnFullBuffer(t *testing.T) {
	var lines strings.Builder
	for i := 0; i < 50; i++ {
		lines.WriteString(`{"type":"cleanup"}` + "\n")
	}

	b := New(strings.NewReader(lines.String()), io.Discard, 4)
	defer b.Close()

	// Wait for the reader to finish, then count what survived
	time.Sleep(100 * time.Millisecond)
	count := 0
	for range b.Commands() {
		count++
	}
	if count == 0 || count > 50 {
		t.Errorf("got %d commands", count)
	}
	if count > 4 {
		// The reader outpaced this consumer, so the bounded buffer
		// must have dropped the overflow
		t.Errorf("buffer of 4 held %d commands", count)
	}
}
