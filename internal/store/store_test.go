package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"privacy-guardian/internal/pii"
)

// backends returns a fresh instance of every backend.
func backends(t *testing.T) map[string]*Store {
	t.Helper()
	dir := t.TempDir()
	out := map[string]*Store{}
	for name, path := range map[string]string{
		BackendBbolt:    filepath.Join(dir, "guardian.db"),
		BackendSQLite:   filepath.Join(dir, "guardian.sqlite"),
		BackendJSONFile: filepath.Join(dir, "guardian.json"),
		BackendMemory:   "",
	} {
		s, err := Open(name, path, nil)
		if err != nil {
			t.Fatalf("Open(%s): %v", name, err)
		}
		t.Cleanup(func() { s.Close() }) //nolint:errcheck // test cleanup
		out[name] = s
	}
	return out
}

func TestFlags_DefaultAndOverwrite(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			v, err := s.Flag(ctx, KeyMonitoringEnabled, true)
			if err != nil || !v {
				t.Fatalf("unset flag = %v, %v; want default true", v, err)
			}
			if err := s.SetFlag(ctx, KeyMonitoringEnabled, false); err != nil {
				t.Fatal(err)
			}
			if v, _ := s.Flag(ctx, KeyMonitoringEnabled, true); v {
				t.Error("flag should read back false")
			}
			if err := s.SetFlag(ctx, KeyMonitoringEnabled, true); err != nil {
				t.Fatal(err)
			}
			if v, _ := s.Flag(ctx, KeyMonitoringEnabled, false); !v {
				t.Error("flag should read back true")
			}
		})
	}
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			p, err := s.Preferences(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if !p.MonitoringEnabled || !p.AutoScan || !p.NotificationsEnabled {
				t.Errorf("defaults = %+v, want all true", p)
			}
			s.SetFlag(ctx, KeyAutoScan, false) //nolint:errcheck // checked below
			p, _ = s.Preferences(ctx)
			if p.AutoScan || !p.MonitoringEnabled {
				t.Errorf("after SetFlag = %+v", p)
			}
		})
	}
}

func TestReport_SingleSlotLastWriterWins(t *testing.T) {
	ctx := context.Background()
	first := pii.ScanReport{
		ID:                   "one",
		Timestamp:            time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		SourceURL:            "https://claude.ai/chat/1",
		TotalMessagesScanned: 2,
		TotalLeaksFound:      1,
		Findings:             []pii.RedactionSpan{{Original: "555-123-4567", Replacement: "[PHONE]"}},
	}
	second := first
	second.ID = "two"
	second.TotalLeaksFound = 0
	second.Findings = []pii.RedactionSpan{}

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.LastReport(ctx); ok || err != nil {
				t.Fatalf("empty store LastReport ok=%v err=%v", ok, err)
			}
			if err := s.SaveReport(ctx, first); err != nil {
				t.Fatal(err)
			}
			got, ok, err := s.LastReport(ctx)
			if err != nil || !ok {
				t.Fatalf("LastReport ok=%v err=%v", ok, err)
			}
			if got.ID != "one" || got.TotalLeaksFound != 1 || len(got.Findings) != 1 || !got.Timestamp.Equal(first.Timestamp) {
				t.Errorf("round trip = %+v", got)
			}
			if err := s.SaveReport(ctx, second); err != nil {
				t.Fatal(err)
			}
			got, _, _ = s.LastReport(ctx)
			if got.ID != "two" || len(got.Findings) != 0 {
				t.Errorf("second save did not overwrite: %+v", got)
			}
		})
	}
}

func TestReopen_Persists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	for _, name := range []string{BackendBbolt, BackendSQLite, BackendJSONFile} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "state-"+name)
			s, err := Open(name, path, nil)
			if err != nil {
				t.Fatal(err)
			}
			s.SetFlag(ctx, KeyNotificationsEnabled, false) //nolint:errcheck // checked after reopen
			s.Close()                                      //nolint:errcheck // reopened below

			s, err = Open(name, path, nil)
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close() //nolint:errcheck // test cleanup
			if v, _ := s.Flag(ctx, KeyNotificationsEnabled, true); v {
				t.Error("flag lost across reopen")
			}
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("redis", filepath.Join(t.TempDir(), "x"), nil)
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("err = %v, want ErrUnknownBackend", err)
	}
}

func TestOpen_EmptyPathIsMemory(t *testing.T) {
	s, err := Open(BackendBbolt, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.b.(*Memory); !ok {
		t.Errorf("backend = %T, want *Memory", s.b)
	}
}

func TestFlag_MalformedFallsBackToDefault(t *testing.T) {
	m := NewMemory()
	m.Put(context.Background(), KeyAutoScan, []byte("maybe")) //nolint:errcheck // memory never fails
	s := New(m, nil)
	if v, err := s.Flag(context.Background(), KeyAutoScan, true); err != nil || !v {
		t.Errorf("Flag = %v, %v; want default true", v, err)
	}
}

func TestJSONFile_HumanReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "guardian.json")
	s, err := Open(BackendJSONFile, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close() //nolint:errcheck // test cleanup
	if err := s.SetFlag(context.Background(), KeyMonitoringEnabled, false); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := `"isMonitoringEnabled": false`; !strings.Contains(string(data), want) {
		t.Errorf("file = %s, want it to contain %s", data, want)
	}
	if err := s.b.Put(context.Background(), "raw", []byte("not json")); err == nil {
		t.Error("non-JSON value should be rejected")
	}
}

func TestJSONFile_ConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardian.json")
	a, _ := OpenJSONFile(path)
	b, _ := OpenJSONFile(path)
	defer a.Close() //nolint:errcheck // test cleanup
	defer b.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()
	keys := []string{KeyMonitoringEnabled, KeyAutoScan, KeyNotificationsEnabled, "k4", "k5", "k6"}
	var wg sync.WaitGroup
	for i, k := range keys {
		be := a
		if i%2 == 1 {
			be = b
		}
		wg.Add(1)
		go func(be *JSONFile, k string) {
			defer wg.Done()
			if err := be.Put(ctx, k, []byte("true")); err != nil {
				t.Errorf("Put(%s): %v", k, err)
			}
		}(be, k)
	}
	wg.Wait()

	for _, k := range keys {
		if _, ok, err := a.Get(ctx, k); !ok || err != nil {
			t.Errorf("key %s lost (ok=%v err=%v)", k, ok, err)
		}
	}
}
