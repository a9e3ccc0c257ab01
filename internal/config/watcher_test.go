package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type testConfig struct {
	Name  string `toml:"name"`
	Value int    `toml:"value"`
}

func loadTestConfig(path string) (testConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return testConfig{}, err
	}
	var cfg testConfig
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// startWatcher writes initial to a fresh file and starts a watcher on it.
func startWatcher(t *testing.T, initial string, opts ...WatcherOption[testConfig]) (*Watcher[testConfig], string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hardware.toml")
	if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
		t.Fatal(err)
	}

	opts = append([]WatcherOption[testConfig]{WithDebounce[testConfig](50 * time.Millisecond)}, opts...)
	watcher := NewConfigWatcher(path, loadTestConfig, newTestLogger(), opts...)
	return watcher, path
}

func run(t *testing.T, w *Watcher[testConfig]) {
	t.Helper()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	// let the watch loop settle
	time.Sleep(100 * time.Millisecond)
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func receive(t *testing.T, ch <-chan testConfig) testConfig {
	t.Helper()
	select {
	case cfg := <-ch:
		return cfg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
		return testConfig{}
	}
}

func TestConfigWatcher_BasicReload(t *testing.T) {
	watcher, path := startWatcher(t, "name = \"initial\"\nvalue = 1\n")
	received := make(chan testConfig, 1)
	watcher.OnReload(func(cfg testConfig) { received <- cfg })
	run(t, watcher)

	write(t, path, "name = \"updated\"\nvalue = 42\n")

	if cfg := receive(t, received); cfg.Name != "updated" || cfg.Value != 42 {
		t.Errorf("got %+v, want name=updated, value=42", cfg)
	}
}

func TestConfigWatcher_AtomicReplace(t *testing.T) {
	watcher, path := startWatcher(t, "value = 1\n")
	received := make(chan testConfig, 1)
	watcher.OnReload(func(cfg testConfig) { received <- cfg })
	run(t, watcher)

	tmp := path + ".tmp"
	write(t, tmp, "value = 7\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	if cfg := receive(t, received); cfg.Value != 7 {
		t.Errorf("expected value=7 after rename, got %d", cfg.Value)
	}
}

func TestConfigWatcher_IgnoresSiblingFiles(t *testing.T) {
	watcher, path := startWatcher(t, "value = 1\n")
	var count atomic.Int32
	watcher.OnReload(func(testConfig) { count.Add(1) })
	run(t, watcher)

	write(t, filepath.Join(filepath.Dir(path), "other.toml"), "value = 2\n")
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected no reload for another file, got %d", got)
	}
}

func TestConfigWatcher_FreshConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hardware.toml")
	write(t, path, "value = 1\n")

	var loadCount atomic.Int32
	loader := func(path string) (testConfig, error) {
		loadCount.Add(1)
		return loadTestConfig(path)
	}
	watcher := NewConfigWatcher(path, loader, newTestLogger(), WithDebounce[testConfig](50*time.Millisecond))
	received := make(chan testConfig, 10)
	watcher.OnReload(func(cfg testConfig) { received <- cfg })
	run(t, watcher)

	write(t, path, "value = 10\n")
	receive(t, received)

	time.Sleep(100 * time.Millisecond)
	write(t, path, "value = 20\n")
	if cfg := receive(t, received); cfg.Value != 20 {
		t.Errorf("expected value=20, got %d", cfg.Value)
	}
	if got := loadCount.Load(); got < 2 {
		t.Errorf("expected at least 2 loads, got %d", got)
	}
}

func TestConfigWatcher_MultipleHandlers(t *testing.T) {
	watcher, path := startWatcher(t, "name = \"test\"\nvalue = 1\n")

	var count atomic.Int32
	var configs []testConfig
	var mu sync.Mutex
	for range 3 {
		watcher.OnReload(func(cfg testConfig) {
			count.Add(1)
			mu.Lock()
			configs = append(configs, cfg)
			mu.Unlock()
		})
	}
	run(t, watcher)

	write(t, path, "name = \"new\"\nvalue = 2\n")
	time.Sleep(300 * time.Millisecond)

	if got := count.Load(); got != 3 {
		t.Errorf("expected 3 handlers called, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	for i, cfg := range configs {
		if cfg.Name != "new" || cfg.Value != 2 {
			t.Errorf("handler %d got wrong config: %+v", i, cfg)
		}
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	watcher, path := startWatcher(t, "value = 1\n")

	var count1, count2 atomic.Int32
	watcher.OnReload(func(testConfig) { count1.Add(1) })
	unsub2 := watcher.OnReload(func(testConfig) { count2.Add(1) })
	run(t, watcher)

	write(t, path, "value = 10\n")
	time.Sleep(300 * time.Millisecond)
	unsub2()

	write(t, path, "value = 20\n")
	time.Sleep(300 * time.Millisecond)

	if got := count1.Load(); got != 2 {
		t.Errorf("handler1: expected 2 calls, got %d", got)
	}
	if got := count2.Load(); got != 1 {
		t.Errorf("handler2: expected 1 call, got %d", got)
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	errorReceived := make(chan error, 1)
	watcher, path := startWatcher(t, "name = \"valid\"\nvalue = 1\n",
		WithErrorHandler[testConfig](func(err error) { errorReceived <- err }))
	configReceived := make(chan testConfig, 1)
	watcher.OnReload(func(cfg testConfig) { configReceived <- cfg })
	run(t, watcher)

	write(t, path, "invalid toml [[[")

	select {
	case <-errorReceived:
	case <-configReceived:
		t.Fatal("config handler should not be called on error")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	watcher, path := startWatcher(t, "value = 0\n", WithDebounce[testConfig](200*time.Millisecond))

	var count, lastValue atomic.Int32
	watcher.OnReload(func(cfg testConfig) {
		count.Add(1)
		lastValue.Store(int32(cfg.Value))
	})
	run(t, watcher)

	for i := 1; i <= 5; i++ {
		write(t, path, fmt.Sprintf("value = %d\n", i))
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced call, got %d", got)
	}
	if got := lastValue.Load(); got != 5 {
		t.Errorf("expected final value 5, got %d", got)
	}
}

func TestConfigWatcher_ThreadSafety(t *testing.T) {
	watcher, path := startWatcher(t, "name = \"test\"\n", WithDebounce[testConfig](10*time.Millisecond))
	run(t, watcher)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := watcher.OnReload(func(testConfig) {})
			time.Sleep(time.Millisecond)
			unsub()
		}()
	}
	for i := range 10 {
		write(t, path, fmt.Sprintf("value = %d\n", i))
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()
}

func TestConfigWatcher_Stop(t *testing.T) {
	watcher, path := startWatcher(t, "value = 1\n")
	var count atomic.Int32
	watcher.OnReload(func(testConfig) { count.Add(1) })

	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := watcher.Stop(); err != nil {
		t.Fatal(err)
	}

	write(t, path, "value = 99\n")
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected 0 calls after stop, got %d", got)
	}
}

func TestConfigWatcher_SkipsUnchangedRewrite(t *testing.T) {
	watcher, path := startWatcher(t, "value = 1\n")
	received := make(chan testConfig, 4)
	watcher.OnReload(func(cfg testConfig) { received <- cfg })
	run(t, watcher)

	write(t, path, "value = 1\n")
	time.Sleep(200 * time.Millisecond)
	select {
	case cfg := <-received:
		t.Fatalf("identical rewrite reloaded %+v", cfg)
	default:
	}

	write(t, path, "value = 2\n")
	if cfg := receive(t, received); cfg.Value != 2 {
		t.Errorf("expected value=2, got %d", cfg.Value)
	}
	write(t, path, "value = 2\n")
	time.Sleep(200 * time.Millisecond)
	if n := len(received); n != 0 {
		t.Errorf("expected no reload for the same content twice, got %d", n)
	}
}

func TestConfigWatcher_StopTwice(t *testing.T) {
	watcher, _ := startWatcher(t, "value = 1\n")
	if err := watcher.Stop(); err != nil {
		t.Errorf("Stop before Start: %v", err)
	}
	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	if err := watcher.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := watcher.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
