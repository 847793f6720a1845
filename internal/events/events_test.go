package events

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestBusWithoutObservers(t *testing.T) {
	bus := NewBus(0, testLogger)
	bus.Emit(ScrapingCompleted, RunTotals{TotalProducts: 1})
	bus.Close()
	bus.Emit(ScrapingCompleted, RunTotals{})
}

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(16, testLogger)

	var mu sync.Mutex
	var got []string
	unsubscribe := bus.Subscribe("test", func(ev Event) {
		mu.Lock()
		got = append(got, ev.Name)
		mu.Unlock()
	})

	bus.Emit(ScrapingProgress, Progress{Running: true})
	bus.Emit(DistributorCompleted, DistributorResult{Distributor: "Miro"})
	bus.Emit(ScrapingCompleted, RunTotals{})
	unsubscribe()

	want := []string{ScrapingProgress, DistributorCompleted, ScrapingCompleted}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}

	bus.Emit(ScrapingError, DistributorFailure{})
	if len(got) != 3 {
		t.Errorf("unsubscribed observer still received events: %v", got)
	}
}

func TestBusDropsWhenObserverIsSlow(t *testing.T) {
	bus := NewBus(1, testLogger)
	release := make(chan struct{})
	received := make(chan string, 10)

	bus.Subscribe("slow", func(ev Event) {
		<-release
		received <- ev.Name
	})

	// The first event is taken by the goroutine, the second fills the queue.
	bus.Emit("a", nil)
	time.Sleep(20 * time.Millisecond)
	bus.Emit("b", nil)
	bus.Emit("c", nil)

	if bus.Dropped() != 1 {
		t.Errorf("expected 1 dropped event, got %d", bus.Dropped())
	}

	done := make(chan struct{})
	go func() {
		bus.Emit("d", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a slow observer")
	}

	close(release)
	bus.Close()
}

func TestBusRecoversObserverPanic(t *testing.T) {
	bus := NewBus(4, testLogger)
	calls := 0
	bus.Subscribe("panicky", func(ev Event) {
		calls++
		if ev.Name == "boom" {
			panic("observer bug")
		}
	})
	bus.Emit("boom", nil)
	bus.Emit("after", nil)
	bus.Close()

	if calls != 2 {
		t.Errorf("expected observer to keep running after panic, got %d calls", calls)
	}
}

func TestWebSocketHubBroadcast(t *testing.T) {
	bus := NewBus(8, testLogger)
	defer bus.Close()
	hub := NewWebSocketHub(testLogger)
	defer hub.Attach(bus)()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Clients() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.Clients())
	}

	bus.Emit(DistributorCompleted, DistributorResult{Distributor: "Communica", ProductsFound: 3, ProductsNew: 2})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var got struct {
		Event string            `json:"event"`
		Data  DistributorResult `json:"data"`
	}
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", msg, err)
	}
	if got.Event != DistributorCompleted || got.Data.Distributor != "Communica" || got.Data.ProductsNew != 2 {
		t.Errorf("unexpected message: %s", msg)
	}
}
