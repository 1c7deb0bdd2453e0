package core

import "github.com/spaghettifunk/ludo/engine/containers"

// Number of frames the frame time is averaged over.
const FrameTimeWindow = 30

/**
 * @brief Frame statistics of the main loop: a rolling average of the frame
 * time and the frames counted over the last full second.
 */
type Metrics struct {
	frameTimes *containers.RingQueue[float64]
	// sum of the frame times in the window, in milliseconds
	windowMS      float64
	frames        int32
	accumulatedMS float64
	fps           float64
}

func NewMetrics() *Metrics {
	return &Metrics{frameTimes: containers.NewRingQueue[float64](FrameTimeWindow)}
}

/**
 * @brief Records a frame that took frameElapsedTime seconds. Returns true
 * once per second, when the frame rate was recomputed.
 */
func (m *Metrics) Update(frameElapsedTime float64) bool {
	frameMS := frameElapsedTime * 1000.0
	if dropped, ok := m.frameTimes.Push(frameMS); ok {
		m.windowMS -= dropped
	}
	m.windowMS += frameMS

	m.frames++
	m.accumulatedMS += frameMS
	if m.accumulatedMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedMS -= 1000
		m.frames = 0
		return true
	}
	return false
}

func (m *Metrics) FPSValue() float64 {
	return m.fps
}

// FrameTime is the average frame time of the window in milliseconds.
func (m *Metrics) FrameTime() float64 {
	if m.frameTimes.Len() == 0 {
		return 0
	}
	return m.windowMS / float64(m.frameTimes.Len())
}
