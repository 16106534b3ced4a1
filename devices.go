package authcore

import (
	"sort"
	"time"
)

// appendTrustedDevice drops expired entries, replaces any entry with the
// same fingerprint, appends the new device, and truncates to the newest
// maxDevices entries. The cap is enforced here on every write, not left to
// incidental slicing.
func appendTrustedDevice(devices []TrustedDevice, device TrustedDevice, maxDevices int, now time.Time) []TrustedDevice {
	kept := make([]TrustedDevice, 0, len(devices)+1)
	for _, d := range devices {
		if !d.TrustedUntil.After(now) {
			continue
		}
		if d.Fingerprint == device.Fingerprint {
			continue
		}
		kept = append(kept, d)
	}
	kept = append(kept, device)

	sort.Slice(kept, func(i, j int) bool {
		return kept[i].CreatedAt.Before(kept[j].CreatedAt)
	})
	if len(kept) > maxDevices {
		kept = kept[len(kept)-maxDevices:]
	}
	return kept
}

// deviceTrusted reports whether a non-expired entry matches fingerprint.
func deviceTrusted(devices []TrustedDevice, fingerprint string, now time.Time) bool {
	if fingerprint == "" {
		return false
	}
	for _, d := range devices {
		if d.Fingerprint == fingerprint && d.TrustedUntil.After(now) {
			return true
		}
	}
	return false
}
