package statusweb

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ervinoro/dintact/internal/change"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestChangeViews_ProjectsChangeFields(t *testing.T) {
	views := changeViews([]change.Change{
		change.Added{Base: change.Base{RelPath: "a.txt", ByteSize: 5}},
	})
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	v := views[0]
	if v.Path != "a.txt" || v.HasBeen != "added" || v.Size != 5 {
		t.Errorf("unexpected view: %+v", v)
	}
}

func TestEvent_MarshalsOmittingEmptyFields(t *testing.T) {
	data, err := json.Marshal(Event{Type: "message", Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["changes"]; ok {
		t.Error("expected omitted changes field")
	}
	if _, ok := raw["error"]; ok {
		t.Error("expected omitted error field")
	}
}

func TestWSBar_BroadcastsProgressAndMessage(t *testing.T) {
	s := New("127.0.0.1:0", t.TempDir(), t.TempDir(), silentLogger())
	bar := newWSBar(s)
	bar.SetTotal(100)
	bar.Add(40)

	select {
	case event := <-s.events:
		if event.Type != "progress" || event.Current != 40 || event.Total != 100 {
			t.Errorf("unexpected progress event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a progress event")
	}

	bar.Message("hashing")
	select {
	case event := <-s.events:
		if event.Type != "message" || event.Message != "hashing" {
			t.Errorf("unexpected message event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a message event")
	}
}

func TestServer_ServesDashboardAndStreamsChanges(t *testing.T) {
	hot := t.TempDir()
	cold := t.TempDir()
	if err := os.WriteFile(filepath.Join(hot, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New("127.0.0.1:0", hot, cold, silentLogger())

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	var addr string
	for i := 0; i < 100; i++ {
		if a := s.Addr(); a != "" {
			addr = a
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server never bound a listener")
	}
	defer func() {
		s.Shutdown()
		<-done
	}()

	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from dashboard root, got %d", resp.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("did not receive a changes event before the deadline: %v", err)
		}
		if event.Type == "changes" {
			if len(event.Changes) != 1 || event.Changes[0].Path != "a.txt" {
				t.Errorf("unexpected changes event: %+v", event)
			}
			break
		}
	}
}
