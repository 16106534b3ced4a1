package authcore

import (
	"testing"
	"time"
)

func deviceAt(fingerprint string, created time.Time, ttl time.Duration) TrustedDevice {
	return TrustedDevice{
		Fingerprint:  fingerprint,
		CreatedAt:    created,
		TrustedUntil: created.Add(ttl),
	}
}

func TestAppendTrustedDeviceDropsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	devices := []TrustedDevice{
		deviceAt("old", now.Add(-48*time.Hour), 24*time.Hour), // expired
		deviceAt("live", now.Add(-time.Hour), 24*time.Hour),
	}

	result := appendTrustedDevice(devices, deviceAt("new", now, 24*time.Hour), 10, now)
	if len(result) != 2 {
		t.Fatalf("expected 2 devices after expiry sweep, got %d", len(result))
	}
	if deviceTrusted(result, "old", now) {
		t.Fatal("expired device survived")
	}
	if !deviceTrusted(result, "live", now) || !deviceTrusted(result, "new", now) {
		t.Fatal("live devices missing")
	}
}

func TestAppendTrustedDeviceReplacesFingerprint(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	devices := []TrustedDevice{deviceAt("d1", now.Add(-time.Hour), 24*time.Hour)}

	replacement := deviceAt("d1", now, 48*time.Hour)
	result := appendTrustedDevice(devices, replacement, 10, now)
	if len(result) != 1 {
		t.Fatalf("expected 1 device after replacement, got %d", len(result))
	}
	if !result[0].TrustedUntil.Equal(replacement.TrustedUntil) {
		t.Fatal("replacement did not win")
	}
}

func TestAppendTrustedDeviceEnforcesCap(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var devices []TrustedDevice
	for i := 0; i < 10; i++ {
		created := now.Add(time.Duration(i) * time.Minute)
		devices = appendTrustedDevice(devices, deviceAt(string(rune('a'+i)), created, 24*time.Hour), 3, now)
	}
	if len(devices) != 3 {
		t.Fatalf("expected cap of 3, got %d", len(devices))
	}
	for i, want := range []string{"h", "i", "j"} {
		if devices[i].Fingerprint != want {
			t.Fatalf("expected newest-by-creation retained, got %v", devices)
		}
	}
}

func TestDeviceTrustedEdges(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	devices := []TrustedDevice{deviceAt("d1", now.Add(-time.Hour), time.Hour)}

	if deviceTrusted(devices, "", now) {
		t.Fatal("empty fingerprint must never be trusted")
	}
	// TrustedUntil == now is expired: trust requires strictly After.
	if deviceTrusted(devices, "d1", now) {
		t.Fatal("boundary instant must count as expired")
	}
	if !deviceTrusted(devices, "d1", now.Add(-time.Minute)) {
		t.Fatal("device inside window rejected")
	}
}
