package ws_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/fluxtrace/internal/flux"
	"github.com/persistorai/fluxtrace/internal/models"
	"github.com/persistorai/fluxtrace/internal/ws"
)

type fakeStream struct {
	hits      []models.TraceHit
	err       error
	block     bool
	truncated bool
	closed    atomic.Int32
	ctx       context.Context //nolint:containedctx // mirrors the trace context.
}

func (f *fakeStream) Start() models.Node { return models.Node{ID: "S", Key: "0x5"} }

func (f *fakeStream) Stats() flux.Stats { return flux.Stats{Visited: len(f.hits), Emitted: len(f.hits)} }

func (f *fakeStream) Truncated() bool { return f.truncated }

func (f *fakeStream) Close() { f.closed.Add(1) }

func (f *fakeStream) Hits() iter.Seq2[models.TraceHit, error] {
	return func(yield func(models.TraceHit, error) bool) {
		for _, h := range f.hits {
			if !yield(h, nil) {
				return
			}
		}

		if f.block {
			<-f.ctx.Done()
			yield(models.TraceHit{}, f.ctx.Err())

			return
		}

		if f.err != nil {
			yield(models.TraceHit{}, f.err)
		}
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

// serve starts a server that streams fs to every connection. runErr receives
// the result of Session.Run.
func serve(t *testing.T, fs *fakeStream) (string, <-chan error) {
	t.Helper()

	runErr := make(chan error, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			runErr <- err
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		fs.ctx = ctx
		runErr <- ws.NewSession(conn, cancel, testLogger()).Run(ctx, fs)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), runErr
}

func readAll(t *testing.T, ctx context.Context, conn *websocket.Conn) []ws.Message {
	t.Helper()

	var msgs []ws.Message

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return msgs
		}

		var m ws.Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decoding message: %v", err)
		}

		msgs = append(msgs, m)
	}
}

func TestSession_StreamsHitsThenDone(t *testing.T) {
	fs := &fakeStream{
		hits: []models.TraceHit{
			{Node: models.Node{ID: "S"}, Contribution: 1},
			{Node: models.Node{ID: "A"}, Contribution: 0.5},
		},
		truncated: true,
	}
	url, runErr := serve(t, fs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow() //nolint:errcheck // test teardown

	msgs := readAll(t, ctx, conn)

	var types []string
	for _, m := range msgs {
		types = append(types, m.Type)
	}

	want := []string{ws.TypeStart, ws.TypeHit, ws.TypeHit, ws.TypeDone}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("message types = %v, want %v", types, want)
	}

	if msgs[0].Start == nil || msgs[0].Start.ID != "S" {
		t.Errorf("start frame = %+v", msgs[0])
	}

	if msgs[2].Hit == nil || msgs[2].Hit.Contribution != 0.5 {
		t.Errorf("second hit = %+v", msgs[2].Hit)
	}

	done := msgs[3]
	if done.Hits != 2 || !done.Truncated || done.Stats == nil || done.Stats.Emitted != 2 {
		t.Errorf("done frame = %+v", done)
	}

	if err := <-runErr; err != nil {
		t.Errorf("Run: %v", err)
	}

	if fs.closed.Load() == 0 {
		t.Error("stream was not closed")
	}
}

func TestSession_ErrorFrame(t *testing.T) {
	fs := &fakeStream{
		hits: []models.TraceHit{{Node: models.Node{ID: "S"}, Contribution: 1}},
		err:  errors.New("snapshot lost"),
	}
	url, runErr := serve(t, fs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow() //nolint:errcheck // test teardown

	msgs := readAll(t, ctx, conn)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}

	last := msgs[2]
	if last.Type != ws.TypeError || last.Error != "snapshot lost" {
		t.Errorf("last frame = %+v", last)
	}

	if err := <-runErr; err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestSession_PeerCloseStopsTrace(t *testing.T) {
	fs := &fakeStream{
		hits:  []models.TraceHit{{Node: models.Node{ID: "S"}, Contribution: 1}},
		block: true,
	}
	url, runErr := serve(t, fs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	// Read the start and first hit, then hang up while the trace blocks.
	for range 2 {
		if _, _, err := conn.Read(ctx); err != nil {
			t.Fatalf("read: %v", err)
		}
	}

	conn.Close(websocket.StatusNormalClosure, "bye") //nolint:errcheck // test hangs up

	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("trace did not stop after the peer closed")
	}

	if fs.closed.Load() == 0 {
		t.Error("stream was not closed")
	}
}
