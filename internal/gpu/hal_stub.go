//go:build nogpu

package gpu

import "errors"

// AdapterInfo describes one enumerated GPU adapter.
type AdapterInfo struct {
	Name       string `json:"name"`
	Backend    string `json:"backend"`
	DeviceType string `json:"deviceType"`
}

var errNoGPUBuild = errors.New("built without GPU support (nogpu)")

// OpenHAL always fails in nogpu builds.
func OpenHAL() (Device, error) {
	return nil, errNoGPUBuild
}

// EnumerateAdapters always fails in nogpu builds.
func EnumerateAdapters() ([]AdapterInfo, error) {
	return nil, errNoGPUBuild
}
