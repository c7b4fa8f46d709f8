package node

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/smazurov/branchout/internal/events"
	"github.com/smazurov/branchout/internal/hostsim"
	"github.com/smazurov/branchout/internal/output"
	"github.com/smazurov/branchout/internal/settings"
)

func streamSettings(server string) settings.Data {
	return settings.Data{
		settings.KeyServer:       server,
		settings.KeyKey:          "secret",
		settings.KeyVideoEncoder: hostsim.VideoEncoderID,
		settings.KeyAudioEncoder: hostsim.AudioEncoderID,
	}
}

func newTestNode(t *testing.T, watch time.Duration) (*Node, *events.Bus) {
	t.Helper()
	bus := events.New()
	n := New(Config{
		FilterName:      "Branch 1",
		SourceName:      "Camera",
		SourceWidth:     1280,
		SourceHeight:    720,
		AudioSourceName: "Mic",
		SettingsDir:     t.TempDir(),
		TickInterval:    10 * time.Millisecond,
		WatchDebounce:   watch,
	}, bus)
	t.Cleanup(n.filter.Destroy)
	return n, bus
}

func TestApplySettingsStartsOutput(t *testing.T) {
	n, bus := newTestNode(t, 0)

	saved := make(chan any, 4)
	unsub := events.SubscribeToChannel[events.SettingsUpdatedEvent](bus, saved)
	defer unsub()

	if !n.ApplySettings(streamSettings("rtmp://live.example.com/app"), OriginAPI) {
		t.Fatal("first apply reported no change")
	}
	if n.ApplySettings(streamSettings("rtmp://live.example.com/app"), OriginAPI) {
		t.Error("equal settings should be ignored")
	}

	select {
	case ev := <-saved:
		e := ev.(events.SettingsUpdatedEvent)
		if e.Source != OriginAPI {
			t.Errorf("Source = %q, want %q", e.Source, OriginAPI)
		}
		if !slices.Equal(e.Keys, []string{"audio_encoder", "key", "server", "video_encoder"}) {
			t.Errorf("Keys = %v", e.Keys)
		}
	case <-time.After(time.Second):
		t.Fatal("no settings event")
	}

	n.engine.Tick()
	if got := n.Status().State; got != output.StateConnecting {
		t.Fatalf("state after first tick = %s, want connecting", got)
	}
	n.engine.Tick()
	st := n.Status()
	if st.State != output.StateActive {
		t.Errorf("state after second tick = %s, want active", st.State)
	}
	if st.Width != 1280 || st.Height != 720 || st.OutputType != output.OutputTypeRTMP {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestSetEnabledStopsOutput(t *testing.T) {
	n, bus := newTestNode(t, 0)

	states := make(chan any, 16)
	unsubState := events.SubscribeToChannel[events.OutputStateChangedEvent](bus, states)
	defer unsubState()
	toggles := make(chan any, 1)
	unsubToggle := events.SubscribeToChannel[events.SourceToggledEvent](bus, toggles)
	defer unsubToggle()

	n.ApplySettings(streamSettings("rtmp://live.example.com/app"), OriginAPI)
	n.engine.Tick()

	n.SetEnabled(false)
	if n.Enabled() {
		t.Fatal("filter still enabled")
	}
	n.engine.Tick()

	if got := n.Status().State; got != output.StateIdle {
		t.Errorf("state = %s, want idle", got)
	}

	select {
	case ev := <-toggles:
		if ev.(events.SourceToggledEvent).Enabled {
			t.Error("toggle event reports enabled")
		}
	case <-time.After(time.Second):
		t.Fatal("no toggle event")
	}

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-states:
			if e := ev.(events.OutputStateChangedEvent); e.To == string(output.StateIdle) {
				if e.Reason != "source disabled" {
					t.Errorf("Reason = %q", e.Reason)
				}
				return
			}
		case <-deadline:
			t.Fatal("no idle transition event")
		}
	}
}

func TestNetworkDropDemotesActive(t *testing.T) {
	n, _ := newTestNode(t, 0)
	n.ApplySettings(streamSettings("rtmp://live.example.com/app"), OriginAPI)
	n.engine.Tick()
	n.engine.Tick()
	if got := n.Status().State; got != output.StateActive {
		t.Fatalf("state = %s, want active", got)
	}

	n.SetNetwork(false)
	n.engine.Tick()
	if got := n.Status().State; got != output.StateConnecting {
		t.Errorf("state after network drop = %s, want connecting", got)
	}

	n.SetNetwork(true)
	n.engine.Tick()
	if got := n.Status().State; got != output.StateActive {
		t.Errorf("state after network recovery = %s, want active", got)
	}
}

func TestSourcesSorted(t *testing.T) {
	n, _ := newTestNode(t, 0)

	var names []string
	for _, s := range n.Sources() {
		names = append(names, s.Name)
	}
	if !slices.Equal(names, []string{"Camera", "Mic", "Scene"}) {
		t.Errorf("Sources() = %v", names)
	}
}

func TestRunAppliesSettingsFile(t *testing.T) {
	n, _ := newTestNode(t, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run returned %v", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)

	// An external editor writes the settings file.
	external := settings.NewStore(n.cfg.SettingsDir, nil)
	if err := external.Save(streamSettings("srt://ingest.example.com:9000")); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n.Settings().String(settings.KeyServer) == "srt://ingest.example.com:9000" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if got := n.Settings().String(settings.KeyServer); got != "srt://ingest.example.com:9000" {
		t.Fatalf("server = %q, file change not applied", got)
	}

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && n.Status().OutputType != output.OutputTypeMPEGTS {
		time.Sleep(20 * time.Millisecond)
	}
	if got := n.Status().OutputType; got != output.OutputTypeMPEGTS {
		t.Errorf("OutputType = %q, want %q", got, output.OutputTypeMPEGTS)
	}
}
