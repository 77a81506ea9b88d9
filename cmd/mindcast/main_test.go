package main

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iabetor/mindcast/internal/audio"
	"github.com/iabetor/mindcast/internal/bus"
	"github.com/iabetor/mindcast/internal/config"
	"github.com/iabetor/mindcast/internal/metrics"
)

// fakeGemini 返回 0.1 秒的 24kHz 单声道 PCM。
func fakeGemini(t *testing.T, calls *atomic.Int32, delay time.Duration) *httptest.Server {
	t.Helper()
	pcm := make([]byte, 4800)
	body := fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16;codec=pcm;rate=24000","data":%q}}]}}]}`,
		base64.StdEncoding.EncodeToString(pcm))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func int16sToBytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func bytesToInt16s(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

func loadTestConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mindcast.yaml")
	content := fmt.Sprintf(`
tts:
  secondary:
    api_url: %s
    api_key: test-key
pipeline:
  throttle_ms: 1
`, apiURL)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	return cfg
}

func TestRunRender_WritesSegmentsAndManifest(t *testing.T) {
	var calls atomic.Int32
	srv := fakeGemini(t, &calls, 0)
	cfg := loadTestConfig(t, srv.URL)

	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "session.yaml")
	if err := os.WriteFile(scriptPath, []byte(`
title: Short break
batches:
  - text: Breathe in
  - text: ""
  - text: Relax
`), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	outDir := filepath.Join(dir, "out")

	completed, err := runRender(context.Background(), make(chan struct{}), cfg, m, renderOptions{
		ScriptPath: scriptPath,
		OutDir:     outDir,
	})
	if err != nil {
		t.Fatalf("runRender failed: %v", err)
	}
	if !completed {
		t.Fatal("expected session to complete")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("provider calls = %d, want 2", got)
	}

	for _, name := range []string{"segment-0-0.wav", "segment-2-0.wav"} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if !audio.IsWAV(data) || len(data) != 4800+audio.HeaderSize {
			t.Errorf("%s: unexpected content (len=%d)", name, len(data))
		}
	}

	raw, err := os.ReadFile(filepath.Join(outDir, "manifest.json"))
	if err != nil {
		t.Fatalf("missing manifest: %v", err)
	}
	var mf manifest
	if err := json.Unmarshal(raw, &mf); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if !mf.Complete || mf.Title != "Short break" || mf.Voice != "Kore" || mf.Batches != 3 {
		t.Errorf("manifest = %+v", mf)
	}
	if len(mf.Segments) != 2 || mf.Segments[1].Text != "Relax" || mf.Segments[1].Index != 2 {
		t.Fatalf("segments = %+v", mf.Segments)
	}
	if d := mf.Segments[0].Duration; d < 0.099 || d > 0.101 {
		t.Errorf("duration = %v, want 0.1", d)
	}
	if got := testutil.ToFloat64(m.Batches.WithLabelValues("emitted")); got != 2 {
		t.Errorf("emitted counter = %v, want 2", got)
	}
}

func TestRunRender_StopWritesPartialManifest(t *testing.T) {
	var calls atomic.Int32
	srv := fakeGemini(t, &calls, 50*time.Millisecond)
	cfg := loadTestConfig(t, srv.URL)

	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "session.txt")
	if err := os.WriteFile(scriptPath, []byte("One.\n\nTwo.\n"), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	stop := make(chan struct{})
	close(stop)
	outDir := filepath.Join(dir, "out")

	completed, err := runRender(context.Background(), stop, cfg, nil, renderOptions{
		ScriptPath: scriptPath,
		OutDir:     outDir,
		Voice:      "Puck",
	})
	if err != nil {
		t.Fatalf("runRender failed: %v", err)
	}
	if completed {
		t.Error("expected cancelled session")
	}

	raw, err := os.ReadFile(filepath.Join(outDir, "manifest.json"))
	if err != nil {
		t.Fatalf("missing manifest: %v", err)
	}
	var mf manifest
	if err := json.Unmarshal(raw, &mf); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if mf.Complete || mf.Voice != "Puck" {
		t.Errorf("manifest = %+v", mf)
	}
}

func TestRunFade_WritesWAV(t *testing.T) {
	cfg := loadTestConfig(t, "http://127.0.0.1:0")
	dir := t.TempDir()

	in := filepath.Join(dir, "session.pcm")
	samples := make([]int16, 24000) // 1 秒
	for i := range samples {
		samples[i] = 10000
	}
	if err := os.WriteFile(in, int16sToBytes(samples), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	out := filepath.Join(dir, "session.wav")
	if err := runFade(context.Background(), cfg, m, in, out, ""); err != nil {
		t.Fatalf("runFade failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !audio.IsWAV(data) || len(data) != 48000+audio.HeaderSize {
		t.Fatalf("unexpected output length %d", len(data))
	}
	pcm := bytesToInt16s(data[audio.HeaderSize:])
	if pcm[0] != 0 {
		t.Errorf("first sample = %d, want 0 (faded in)", pcm[0])
	}
	if pcm[12000] != 10000 {
		t.Errorf("middle sample = %d, want unchanged 10000", pcm[12000])
	}
	if got := testutil.ToFloat64(m.FadeOperations.WithLabelValues("ok")); got != 1 {
		t.Errorf("fade ok counter = %v, want 1", got)
	}
}

func TestRunFade_DecodeError(t *testing.T) {
	cfg := loadTestConfig(t, "http://127.0.0.1:0")
	in := filepath.Join(t.TempDir(), "empty.wav")
	if err := os.WriteFile(in, nil, 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if err := runFade(context.Background(), cfg, m, in, in+".out", ""); err == nil {
		t.Fatal("expected decode error")
	}
	if got := testutil.ToFloat64(m.FadeOperations.WithLabelValues("error")); got != 1 {
		t.Errorf("fade error counter = %v, want 1", got)
	}
}

func TestSegmentSink_PublishesIndexFromSegment(t *testing.T) {
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("failed to create nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	defer ns.Shutdown()

	sub, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("subscriber connect: %v", err)
	}
	defer sub.Close()
	msgs := make(chan *nats.Msg, 4)
	if _, err := sub.ChanSubscribe("mindcast.segment.ready", msgs); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	client, err := bus.Connect(config.BusConfig{Servers: []string{ns.ClientURL()}, ConnectTimeoutMs: 2000})
	if err != nil {
		t.Fatalf("bus.Connect failed: %v", err)
	}
	defer client.Close()

	dir := t.TempDir()
	sink := &segmentSink{dir: dir, publisher: client, manifest: manifest{Session: "s1"}}

	// ID 不是 segment-<n>-0 形式时序号也不能丢
	sink.onSegmentReady([]audio.Segment{{
		ID:       "intro",
		Index:    7,
		Audio:    audio.NewResource(audio.WrapPCM(make([]byte, 480), audio.DefaultFormat()), audio.MIMEWAV),
		Text:     "Welcome",
		Duration: 0.01,
	}})

	select {
	case msg := <-msgs:
		var ev bus.SegmentEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.Index != 7 || ev.ID != "intro" {
			t.Errorf("event = %+v, want index 7 id intro", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("segment event not received")
	}

	if len(sink.manifest.Segments) != 1 || sink.manifest.Segments[0].Index != 7 {
		t.Errorf("manifest segments = %+v", sink.manifest.Segments)
	}
}
