// Package device merges raw USB/storage events into logical removable
// device identities. Hardware, volume, and container identifiers are
// scraped out of rendered descriptions; events sharing an identity key are
// folded into a single device record with first-seen/last-seen bounds.
package device

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	vidPidRe    = regexp.MustCompile(`(?i)VID_([0-9A-Fa-f]{4}).*?PID_([0-9A-Fa-f]{4})`)
	volumeRe    = regexp.MustCompile(`(?i)Volume\{[0-9A-Fa-f-]+\}`)
	containerRe = regexp.MustCompile(`(?i)Container ID:\s*\{([0-9A-Fa-f-]+)\}`)
)

// Markers that identify an internal or non-storage device. Any hit rejects
// the record outright.
var denyMarkers = []string{
	"ACPI", "ROOT", "UEFI", "Display", "MMDEVAPI", "HID", "input.inf",
	"BTH", "bthusb", "NET", "wbfusbdriver", "print",
}

// Markers that identify removable/mass storage. 36fc9e60-... is the USB
// mass-storage device-class GUID.
var storageMarkers = []string{
	"USBSTOR", "usbstor.inf", "UASPSTOR", "Disk", "Volume", "Mass Storage",
	"{36fc9e60-c465-11cf-8056-444553540000}",
}

// SampleCap bounds the example descriptions stored per device and per
// identifier.
const SampleCap = 3

// snippetMax is the stored length of a sample description; longer
// descriptions are cut and marked with an ellipsis.
const snippetMax = 200

// IsExternalStorage reports whether a rendered description (plus its
// provider) describes genuinely external removable storage. The deny list
// wins over the allow list; a record may pass the deny list and still fail
// for lack of a storage keyword.
func IsExternalStorage(msg, provider string) bool {
	if strings.TrimSpace(msg) == "" {
		return false
	}
	lower := strings.ToLower(msg)
	for _, m := range denyMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return false
		}
	}

	for _, m := range storageMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}

	lowerProvider := strings.ToLower(provider)
	return strings.Contains(lowerProvider, "partition") ||
		strings.Contains(lowerProvider, "storage-classpnp")
}

// Fragments are the identity pieces extracted from one description.
type Fragments struct {
	VidPids    []string
	Volumes    []string
	Containers []string
}

// Extract scans a description for vendor/product id pairs, volume GUIDs,
// and container ids. Hex payloads are normalized to upper case; order of
// appearance is preserved.
func Extract(msg string) Fragments {
	var f Fragments
	for _, m := range vidPidRe.FindAllStringSubmatch(msg, -1) {
		f.VidPids = append(f.VidPids,
			fmt.Sprintf("VID_%s&PID_%s", strings.ToUpper(m[1]), strings.ToUpper(m[2])))
	}
	f.Volumes = volumeRe.FindAllString(msg, -1)
	for _, m := range containerRe.FindAllStringSubmatch(msg, -1) {
		f.Containers = append(f.Containers, strings.ToUpper(m[1]))
	}
	return f
}

// Key selects the correlation key for the fragments, in order of identity
// durability: hardware ids outlive volume ids, which outlive container
// ids. With no fragments at all the key falls back to the provider and
// event identifier.
func (f Fragments) Key(provider string, eventID int) string {
	switch {
	case len(f.VidPids) > 0:
		return strings.Join(dedup(f.VidPids), ", ")
	case len(f.Volumes) > 0:
		return strings.Join(dedup(f.Volumes), ", ")
	case len(f.Containers) > 0:
		return "Container " + strings.Join(dedup(f.Containers), ", ")
	default:
		return fmt.Sprintf("%s / ID %d", provider, eventID)
	}
}

// dedup removes duplicates while preserving first-occurrence order.
func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Device is one correlated removable-storage identity. Entries are created
// on first sight and only ever widened; nothing is removed within a run.
type Device struct {
	Key        string
	Count      int
	FirstSeen  time.Time
	LastSeen   time.Time
	VidPids    map[string]struct{}
	Volumes    map[string]struct{}
	Containers map[string]struct{}
	Samples    []string
}

// Map correlates events into devices. Keys are matched case-insensitively;
// the display key keeps the casing of the first contributing event.
type Map map[string]*Device

// Observe folds one accepted storage event into the map: bumps the event
// count, widens the seen window, unions the fragments, and stores a sample
// description while below the cap.
func (m Map) Observe(t time.Time, msg, provider string, eventID int) *Device {
	frags := Extract(msg)
	key := frags.Key(provider, eventID)

	lookup := strings.ToUpper(key)
	d, ok := m[lookup]
	if !ok {
		d = &Device{
			Key:        key,
			VidPids:    make(map[string]struct{}),
			Volumes:    make(map[string]struct{}),
			Containers: make(map[string]struct{}),
		}
		m[lookup] = d
	}

	d.Count++
	if d.FirstSeen.IsZero() || t.Before(d.FirstSeen) {
		d.FirstSeen = t
	}
	if d.LastSeen.IsZero() || t.After(d.LastSeen) {
		d.LastSeen = t
	}

	for _, v := range frags.VidPids {
		d.VidPids[v] = struct{}{}
	}
	for _, v := range frags.Volumes {
		d.Volumes[v] = struct{}{}
	}
	for _, v := range frags.Containers {
		d.Containers[v] = struct{}{}
	}

	d.Samples = AddSample(d.Samples, msg)
	return d
}

// Sorted returns the devices ordered by event count descending, breaking
// ties by key so the ordering is stable across runs.
func (m Map) Sorted() []*Device {
	devices := make([]*Device, 0, len(m))
	for _, d := range m {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Count != devices[j].Count {
			return devices[i].Count > devices[j].Count
		}
		return devices[i].Key < devices[j].Key
	})
	return devices
}

// AddSample appends a truncated description to a bounded sample list.
// Duplicates and entries past the cap are ignored; the cap is enforced at
// insertion, first come first kept.
func AddSample(samples []string, msg string) []string {
	if msg == "" || len(samples) >= SampleCap {
		return samples
	}
	msg = Truncate(msg)
	for _, s := range samples {
		if s == msg {
			return samples
		}
	}
	return append(samples, msg)
}

// Truncate cuts a description to the stored snippet length, marking the
// cut with an ellipsis.
func Truncate(msg string) string {
	runes := []rune(msg)
	if len(runes) <= snippetMax {
		return msg
	}
	return string(runes[:snippetMax]) + "..."
}
