package service

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadrantLabels 4x4 标签图：左上为实例 1，右下为实例 2
func quadrantLabels() *image.Gray {
	labels := image.NewGray(image.Rect(0, 0, 4, 4))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			labels.SetGray(x, y, color.Gray{Y: 1})
			labels.SetGray(x+2, y+2, color.Gray{Y: 2})
		}
	}
	return labels
}

func TestSegmenter_InstanceMask(t *testing.T) {
	t.Parallel()

	other := fullLabels(4, 4)
	backend := &fakeBackend{
		capability: CapabilityInstanceMask,
		instances: []InstanceObservation{
			{Labels: quadrantLabels(), AllInstances: []uint8{1, 2}},
			other,
		},
	}
	s := NewSegmenter(backend, 0)

	mask, err := s.Segment(context.Background(), solidNRGBA(8, 8, red))
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 8, 8), mask.Bounds())
	assert.Equal(t, uint8(0xff), mask.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0xff), mask.GrayAt(7, 7).Y)
	assert.Equal(t, uint8(0), mask.GrayAt(7, 0).Y)
	assert.Equal(t, uint8(0), mask.GrayAt(0, 7).Y)
	assert.Equal(t, int32(1), backend.instanceCalls.Load())
	assert.Equal(t, int32(0), backend.saliencyCalls.Load())
}

func TestSegmenter_SaliencyMaskKeepsNativeSize(t *testing.T) {
	t.Parallel()

	raw := leftHalfMask(2, 2)
	backend := &fakeBackend{
		capability: CapabilitySaliency,
		saliency:   []SaliencyObservation{{Mask: raw}},
	}
	s := NewSegmenter(backend, 0)

	mask, err := s.Segment(context.Background(), solidNRGBA(8, 8, red))
	require.NoError(t, err)
	assert.Same(t, raw, mask)
	assert.Equal(t, int32(0), backend.instanceCalls.Load())
}

func TestSegmenter_NoResults(t *testing.T) {
	t.Parallel()

	for _, capability := range []Capability{CapabilityInstanceMask, CapabilitySaliency} {
		t.Run(capability.String(), func(t *testing.T) {
			s := NewSegmenter(&fakeBackend{capability: capability}, 0)
			_, err := s.Segment(context.Background(), solidNRGBA(2, 2, red))
			assert.ErrorIs(t, err, ErrRequestFailed)
		})
	}
}

func TestSegmenter_BackendError(t *testing.T) {
	t.Parallel()

	boom := errors.New("model crashed")
	s := NewSegmenter(&fakeBackend{capability: CapabilitySaliency, err: boom}, 0)

	_, err := s.Segment(context.Background(), solidNRGBA(2, 2, red))
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.ErrorIs(t, err, boom)
}

func TestSegmenter_CapabilityResolvedOnce(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		capability: CapabilityInstanceMask,
		instances:  []InstanceObservation{fullLabels(2, 2)},
	}
	s := NewSegmenter(backend, 0)

	for i := 0; i < 3; i++ {
		_, err := s.Segment(context.Background(), solidNRGBA(2, 2, red))
		require.NoError(t, err)
	}
	assert.Equal(t, CapabilityInstanceMask, s.Capability())
	assert.Equal(t, int32(1), backend.capabilityCalls.Load())
}

func TestSegmenter_NilBackend(t *testing.T) {
	t.Parallel()

	s := NewSegmenter(nil, 0)
	assert.Equal(t, CapabilityNone, s.Capability())

	_, err := s.Segment(context.Background(), solidNRGBA(2, 2, red))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSegmenter_Timeout(t *testing.T) {
	t.Parallel()

	s := NewSegmenter(&fakeBackend{capability: CapabilityInstanceMask, block: true}, 20*time.Millisecond)

	_, err := s.Segment(context.Background(), solidNRGBA(2, 2, red))
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSegmenter_TimeoutWithUnresponsiveBackend(t *testing.T) {
	t.Parallel()

	hang := make(chan struct{})
	defer close(hang)

	backend := &fakeBackend{
		capability: CapabilitySaliency,
		saliency:   []SaliencyObservation{{Mask: leftHalfMask(2, 2)}},
		hang:       hang,
	}
	s := NewSegmenter(backend, 20*time.Millisecond)

	start := time.Now()
	_, err := s.Segment(context.Background(), solidNRGBA(2, 2, red))
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSegmenter_CallerCancel(t *testing.T) {
	t.Parallel()

	hang := make(chan struct{})
	defer close(hang)

	s := NewSegmenter(&fakeBackend{capability: CapabilityInstanceMask, hang: hang}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Segment(ctx, solidNRGBA(2, 2, red))
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInstanceObservation_ScaledMask(t *testing.T) {
	t.Parallel()

	obs := InstanceObservation{Labels: quadrantLabels(), AllInstances: []uint8{1, 2}}

	t.Run("subset of instances", func(t *testing.T) {
		mask, err := obs.ScaledMask([]uint8{2}, 4, 4)
		require.NoError(t, err)
		assert.Equal(t, uint8(0), mask.GrayAt(0, 0).Y)
		assert.Equal(t, uint8(0xff), mask.GrayAt(3, 3).Y)
	})

	t.Run("background id is never foreground", func(t *testing.T) {
		mask, err := obs.ScaledMask([]uint8{0}, 4, 4)
		require.NoError(t, err)
		for _, v := range mask.Pix {
			assert.Equal(t, uint8(0), v)
		}
	})

	t.Run("invalid size", func(t *testing.T) {
		_, err := obs.ScaledMask(obs.AllInstances, 0, 4)
		assert.Error(t, err)
	})

	t.Run("missing labels", func(t *testing.T) {
		_, err := InstanceObservation{}.ScaledMask([]uint8{1}, 4, 4)
		assert.Error(t, err)
	})
}

func TestCapabilityString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", CapabilityNone.String())
	assert.Equal(t, "saliency", CapabilitySaliency.String())
	assert.Equal(t, "instance_mask", CapabilityInstanceMask.String())
}
