//go:build !nocv

package vision

import (
	"testing"

	"github.com/TIANLI0/LiftKit/service"
	"github.com/stretchr/testify/assert"
)

func TestProbeCapability(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version string
		want    service.Capability
	}{
		{"4.11.0", service.CapabilityInstanceMask},
		{"4.5.0", service.CapabilityInstanceMask},
		{"5.0.0-pre", service.CapabilityInstanceMask},
		{"4.4.0", service.CapabilitySaliency},
		{"3.4.16", service.CapabilitySaliency},
		{"4.10-dev", service.CapabilityInstanceMask},
		{"", service.CapabilityNone},
		{"unknown", service.CapabilityNone},
		{"x.1", service.CapabilityNone},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.want, ProbeCapability(tt.version))
		})
	}
}

func TestComplexityIterations(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, ComplexityInfo{Level: LevelSimple}.Iterations(5))
	assert.Equal(t, 3, ComplexityInfo{Level: LevelSimple}.Iterations(2))
	assert.Equal(t, 5, ComplexityInfo{Level: LevelMedium}.Iterations(5))
	assert.Equal(t, 6, ComplexityInfo{Level: LevelPortrait}.Iterations(5))
	assert.Equal(t, 7, ComplexityInfo{Level: LevelComplex}.Iterations(5))
}
