//go:build !linux && !darwin

package vcam

// probeAccelerators is a no-op on platforms without dlopen support.
func probeAccelerators() []Accelerator {
	return nil
}
