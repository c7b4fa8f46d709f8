package hostsim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/smazurov/branchout/internal/host"
	"github.com/smazurov/branchout/internal/settings"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestEngine(clock *fakeClock) *Engine {
	return NewEngine(Options{
		Video:        host.VideoInfo{FPSNum: 30, FPSDen: 1, BaseWidth: 1920, BaseHeight: 1080},
		Audio:        host.AudioInfo{SampleRate: 48000, Channels: 2},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:          clock.Now,
		ConnectDelay: 2 * time.Second,
	})
}

func TestSourceInScenes(t *testing.T) {
	e := newTestEngine(&fakeClock{})
	scene := e.AddScene("Scene")
	nested := e.AddScene("Nested")
	camera := e.AddSource("Camera", 1280, 720)
	orphan := e.AddSource("Orphan", 640, 480)

	scene.AddChild(nested)
	nested.AddChild(camera)

	tests := []struct {
		name string
		src  host.Source
		want bool
	}{
		{"scene itself", scene, true},
		{"nested child", camera, true},
		{"not placed", orphan, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.SourceInScenes(tt.src); got != tt.want {
				t.Errorf("SourceInScenes() = %v, want %v", got, tt.want)
			}
		})
	}

	nested.RemoveChild(camera)
	if e.SourceInScenes(camera) {
		t.Error("camera should be unavailable after removal from scene")
	}
}

func TestWeakSourceResolution(t *testing.T) {
	e := newTestEngine(&fakeClock{})
	mic := e.AddSource("Mic", 0, 0)

	strong, ok := e.SourceByUUID(mic.UUID())
	if !ok {
		t.Fatal("source not found by UUID")
	}
	weak := strong.Weak()
	strong.Release()

	got, ok := weak.Get()
	if !ok {
		t.Fatal("weak reference should resolve while source exists")
	}
	got.Release()

	e.RemoveSource(mic)
	if _, ok := weak.Get(); ok {
		t.Error("weak reference should not resolve after removal")
	}
	weak.Release()

	if mic.Refs() != 0 {
		t.Errorf("Refs() = %d, want 0", mic.Refs())
	}
}

func TestOutputConnectsAfterDelay(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	e := newTestEngine(clock)

	svc, err := e.CreateService("rtmp_custom", "f", settings.Data{settings.KeyServer: "rtmp://example/live"})
	if err != nil {
		t.Fatalf("CreateService() error = %v", err)
	}
	out, err := e.CreateOutput("rtmp_output", "f", nil)
	if err != nil {
		t.Fatalf("CreateOutput() error = %v", err)
	}

	if out.Start() {
		t.Fatal("Start() should fail without service and encoders")
	}

	venc, _ := e.CreateVideoEncoder(VideoEncoderID, "f", nil)
	aenc, _ := e.CreateAudioEncoder(AudioEncoderID, "f", e.EncoderDefaults(AudioEncoderID), 0)
	out.SetService(svc)
	out.SetVideoEncoder(venc)
	out.SetAudioEncoder(aenc, 0)

	if !out.Start() {
		t.Fatal("Start() failed")
	}
	if out.Active() {
		t.Error("output should not be active before connect delay")
	}

	clock.Advance(2 * time.Second)
	if !out.Active() {
		t.Error("output should be active after connect delay")
	}

	e.SetNetwork(false)
	if out.Active() {
		t.Error("output should not be active with network down")
	}
}

func TestFailCreate(t *testing.T) {
	e := newTestEngine(&fakeClock{})
	e.FailCreate(KindService, true)

	if _, err := e.CreateService("rtmp_custom", "f", nil); !errors.Is(err, host.ErrCreateFailed) {
		t.Errorf("CreateService() error = %v, want ErrCreateFailed", err)
	}
	if _, err := e.CreateVideoEncoder("", "f", nil); !errors.Is(err, host.ErrNotFound) {
		t.Errorf("CreateVideoEncoder(\"\") error = %v, want ErrNotFound", err)
	}

	e.FailCreate(KindService, false)
	if _, err := e.CreateService("rtmp_custom", "f", nil); err != nil {
		t.Errorf("CreateService() error = %v after reset", err)
	}
}

func TestAudioOutputPumpsIntoEncoder(t *testing.T) {
	e := newTestEngine(&fakeClock{})

	var calls int
	ao, err := e.OpenAudioOutput(host.AudioOutputInfo{
		Name:       "f",
		SampleRate: 48000,
		Channels:   2,
		Format:     host.AudioFormatFloatPlanar,
		Input: func(startTS uint64, mixers uint32, mixes []host.MixBuffer) (uint64, bool) {
			calls++
			for i := range mixes[0].Data[0] {
				mixes[0].Data[0][i] = 0.5
			}
			return startTS, true
		},
	})
	if err != nil {
		t.Fatalf("OpenAudioOutput() error = %v", err)
	}
	enc, _ := e.CreateAudioEncoder(AudioEncoderID, "f", nil, 0)
	enc.SetAudio(ao)

	e.Quantum(0)
	e.Quantum(1)

	if calls != 2 {
		t.Errorf("input callback calls = %d, want 2", calls)
	}
	simEnc := enc.(*Encoder)
	want := int64(2 * host.AudioOutputFrames * 2 * 4)
	if got := simEnc.EncodedBytes(); got != want {
		t.Errorf("EncodedBytes() = %d, want %d", got, want)
	}

	last := ao.(*AudioOutput).LastQuantum()
	if last[0][0] != 0.5 || last[1][0] != 0 {
		t.Errorf("LastQuantum() = [%v %v], want [0.5 0]", last[0][0], last[1][0])
	}

	ao.Close()
	e.Quantum(2)
	if calls != 2 {
		t.Errorf("input callback called after Close, calls = %d", calls)
	}
	if n := len(e.AudioOutputs()); n != 0 {
		t.Errorf("closed audio output not pruned, %d remain", n)
	}
}

func TestEmitAudioReachesCallbacks(t *testing.T) {
	e := newTestEngine(&fakeClock{})
	mic := e.AddSource("Mic", 0, 0)

	var captured, mastered int
	id := mic.AddAudioCaptureCallback(func(_ host.Source, data *host.AudioData, _ bool) {
		captured += int(data.Frames)
	})
	rawID := e.AddRawAudioCallback(2, host.AudioConvertInfo{}, func(_ int, data *host.AudioData) {
		mastered += int(data.Frames)
	})

	e.Quantum(0)
	if captured != host.AudioOutputFrames || mastered != host.AudioOutputFrames {
		t.Errorf("captured=%d mastered=%d, want %d each", captured, mastered, host.AudioOutputFrames)
	}

	mic.RemoveAudioCaptureCallback(id)
	e.RemoveRawAudioCallback(2, rawID)
	if mic.CaptureCallbacks() != 0 || e.RawCallbacks(2) != 0 {
		t.Error("callbacks not removed")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newTestEngine(&fakeClock{})

	ticked := make(chan struct{}, 1)
	e.OnTick(func() {
		select {
		case ticked <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, 5*time.Millisecond) }()

	select {
	case <-ticked:
	case <-time.After(2 * time.Second):
		t.Fatal("no tick observed")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
