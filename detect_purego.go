//go:build linux || darwin

package vcam

import (
	"runtime"

	"github.com/ebitengine/purego"
)

// acceleratorCandidates lists the system libraries whose presence indicates
// a usable hardware encode path.
var acceleratorCandidates = map[string][]Accelerator{
	"darwin": {
		{Name: "videotoolbox", Library: "/System/Library/Frameworks/VideoToolbox.framework/VideoToolbox"},
	},
	"linux": {
		{Name: "vaapi", Library: "libva.so.2"},
		{Name: "nvenc", Library: "libnvidia-encode.so.1"},
	},
}

// probeAccelerators dlopens each candidate and keeps the ones that resolve.
// Handles are closed immediately; providers reopen what they need.
func probeAccelerators() []Accelerator {
	var found []Accelerator
	for _, cand := range acceleratorCandidates[runtime.GOOS] {
		handle, err := purego.Dlopen(cand.Library, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			continue
		}
		_ = purego.Dlclose(handle)
		found = append(found, cand)
	}
	return found
}
