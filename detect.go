package vcam

import "sync"

// Accelerator describes a hardware encode backend found on the host.
type Accelerator struct {
	Name    string // e.g. "videotoolbox", "vaapi", "nvenc"
	Library string // library path or framework that resolved
}

var (
	hwOnce  sync.Once
	hwFound []Accelerator
)

// HardwareAccelerators probes the host once for known hardware-encode
// libraries and returns what was found. The probe only checks that the
// library loads; encoder registration is still up to a provider.
func HardwareAccelerators() []Accelerator {
	hwOnce.Do(func() {
		hwFound = probeAccelerators()
	})
	return hwFound
}

// HardwareEncodingAvailable reports whether any hardware accelerator was
// found on the host.
func HardwareEncodingAvailable() bool {
	return len(HardwareAccelerators()) > 0
}
