// Package hardware describes the target device a sampling backend stands in
// for. Only the fields the backends need are modelled: which SDK API shape
// the device exposes and its shot limit.
package hardware

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wilhg/qreplay/pkg/errmodel"
)

// API identifies the shape of the device descriptor.
type API string

const (
	// APIV1 descriptors publish a max_shots configuration value.
	APIV1 API = "v1"
	// APIV2 descriptors have no shot limit field.
	APIV2 API = "v2"
)

// MinShots is the smallest chunk any supported device accepts.
const MinShots = 1

// Descriptor is a tagged variant over the supported device API shapes.
// MaxShots is only meaningful for APIV1; zero or negative means no limit.
type Descriptor struct {
	API      API    `toml:"api" json:"api"`
	Name     string `toml:"name" json:"name"`
	MaxShots int    `toml:"max_shots" json:"max_shots,omitempty"`
}

// V1 returns a descriptor for a device exposing the older API.
func V1(name string, maxShots int) Descriptor {
	return Descriptor{API: APIV1, Name: name, MaxShots: maxShots}
}

// V2 returns a descriptor for a device exposing the newer API.
func V2(name string) Descriptor { return Descriptor{API: APIV2, Name: name} }

// Validate fails with an unsupported_backend error for unknown API shapes.
func (d Descriptor) Validate() error {
	switch d.API {
	case APIV1, APIV2:
		return nil
	default:
		return errmodel.Backend(errmodel.CodeUnsupportedBackend, "backend not supported", map[string]any{"api": string(d.API), "name": d.Name})
	}
}

// ShotBounds returns the per-chunk shot limits. max is zero when unbounded.
func (d Descriptor) ShotBounds() (min, max int) {
	if d.API == APIV1 && d.MaxShots > 0 {
		return MinShots, d.MaxShots
	}
	return MinShots, 0
}

func (d Descriptor) String() string {
	_, max := d.ShotBounds()
	if max == 0 {
		return fmt.Sprintf("%s(%s, unbounded)", d.Name, d.API)
	}
	return fmt.Sprintf("%s(%s, max_shots=%d)", d.Name, d.API, max)
}

// Decode parses a TOML device description.
func Decode(blob string) (Descriptor, error) {
	var d Descriptor
	if _, err := toml.Decode(blob, &d); err != nil {
		return Descriptor{}, fmt.Errorf("decode device: %w", err)
	}
	d.API = API(strings.ToLower(strings.TrimSpace(string(d.API))))
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// LoadFile reads and parses a TOML device file.
func LoadFile(path string) (Descriptor, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read device file: %w", err)
	}
	return Decode(string(blob))
}
