package scanner

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/muurk/wifimgr/internal/radio/sim"
	"github.com/muurk/wifimgr/internal/wifi"
)

func TestProcessSortsByRSSI(t *testing.T) {
	raw := []wifi.ScanResult{
		{SSID: "weak", RSSI: -90},
		{SSID: "strong", RSSI: -40},
		{SSID: "middle", RSSI: -70},
	}

	got := Process(raw, NoQualityFilter, true)
	want := []string{"strong", "middle", "weak"}
	for i, w := range want {
		if got[i].SSID != w {
			t.Errorf("entry %d = %s, want %s", i, got[i].SSID, w)
		}
	}
	if raw[0].SSID != "weak" {
		t.Error("Process modified its input")
	}
}

func TestProcessRemovesDuplicates(t *testing.T) {
	raw := []wifi.ScanResult{
		{SSID: "HomeNet", RSSI: -80, BSSID: "aa:aa:aa:aa:aa:01"},
		{SSID: "Other", RSSI: -60},
		{SSID: "HomeNet", RSSI: -55, BSSID: "aa:aa:aa:aa:aa:02"},
	}

	got := Process(raw, NoQualityFilter, true)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].SSID != "HomeNet" || got[0].BSSID != "aa:aa:aa:aa:aa:02" {
		t.Errorf("kept %+v, want the -55 dBm HomeNet entry", got[0])
	}

	dups := Duplicates(raw)
	if len(dups) != 1 || !dups[0].Duplicate || dups[0].RSSI != -80 {
		t.Errorf("Duplicates() = %+v", dups)
	}

	all := Process(raw, NoQualityFilter, false)
	if len(all) != 3 {
		t.Errorf("without dedup len = %d, want 3", len(all))
	}
}

func TestProcessQualityFilter(t *testing.T) {
	raw := []wifi.ScanResult{
		{SSID: "a", RSSI: -99}, // quality 2
		{SSID: "b", RSSI: -96}, // quality 8
		{SSID: "c", RSSI: -60},
	}

	tests := []struct {
		min  int
		want int
	}{
		{NoQualityFilter, 3},
		{0, 3},
		{DefaultMinimumQuality, 2},
		{50, 1},
		{100, 0},
	}
	for _, tt := range tests {
		if got := len(Process(raw, tt.min, true)); got != tt.want {
			t.Errorf("min quality %d kept %d, want %d", tt.min, got, tt.want)
		}
	}
}

func TestProcessHiddenRetained(t *testing.T) {
	raw := []wifi.ScanResult{
		{SSID: "", RSSI: -50},
		{SSID: "", RSSI: -70},
		{SSID: "Visible", RSSI: -60},
	}

	got := Process(raw, NoQualityFilter, true)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if !got[0].Hidden || got[1].Hidden || !got[2].Hidden {
		t.Errorf("hidden flags = %v %v %v", got[0].Hidden, got[1].Hidden, got[2].Hidden)
	}
}

func testRadio() *sim.Radio {
	return sim.New(
		sim.Network{SSID: "HomeNet", RSSI: -55, Channel: 6, Encryption: wifi.EncryptionWPA2},
		sim.Network{SSID: "Cafe", RSSI: -75, Channel: 1},
	)
}

func TestScanCachesWithinInterval(t *testing.T) {
	r := testRadio()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := New(r, WithClock(func() time.Time { return now }), WithPollInterval(time.Millisecond))

	first, err := s.Scan(context.Background(), false)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	now = now.Add(DefaultModalScanInterval - time.Second)
	second, err := s.Scan(context.Background(), false)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached scan differs:\n%+v\n%+v", first, second)
	}
	if r.ScanCount() != 1 {
		t.Errorf("hardware scans = %d, want 1", r.ScanCount())
	}

	now = now.Add(2 * time.Second)
	if _, err := s.Scan(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if r.ScanCount() != 2 {
		t.Errorf("hardware scans after expiry = %d, want 2", r.ScanCount())
	}

	if _, err := s.Scan(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if r.ScanCount() != 3 {
		t.Errorf("hardware scans after force = %d, want 3", r.ScanCount())
	}
}

func TestScanReturnsCopy(t *testing.T) {
	s := New(testRadio(), WithPollInterval(time.Millisecond))

	first, err := s.Scan(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	first[0].SSID = "mutated"

	cached, ok := s.Cached()
	if !ok || cached[0].SSID != "HomeNet" {
		t.Errorf("cache was mutated through returned slice: %+v", cached)
	}
}

func TestScanHonoursContext(t *testing.T) {
	r := testRadio()
	r.ScanDuration = time.Hour
	s := New(r, WithPollInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := s.Scan(ctx, true); err == nil {
		t.Error("Scan() should fail when the context expires")
	}
}

func TestSetMinimumSignalQuality(t *testing.T) {
	s := New(testRadio())
	if s.MinimumSignalQuality() != NoQualityFilter {
		t.Errorf("default = %d, want %d", s.MinimumSignalQuality(), NoQualityFilter)
	}
	s.SetMinimumSignalQuality()
	if s.MinimumSignalQuality() != DefaultMinimumQuality {
		t.Errorf("no-arg = %d, want %d", s.MinimumSignalQuality(), DefaultMinimumQuality)
	}
	s.SetMinimumSignalQuality(30)
	if s.MinimumSignalQuality() != 30 {
		t.Errorf("explicit = %d, want 30", s.MinimumSignalQuality())
	}
}

func TestStrongest(t *testing.T) {
	if _, ok := Strongest(nil); ok {
		t.Error("Strongest(nil) should report false")
	}
	best, ok := Strongest([]wifi.ScanResult{{SSID: "a", RSSI: -80}, {SSID: "b", RSSI: -40}})
	if !ok || best.SSID != "b" {
		t.Errorf("Strongest() = %+v", best)
	}
}
