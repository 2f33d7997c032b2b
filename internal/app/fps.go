package app

// fpsMeter averages the frame rate over windows of at least one second.
type fpsMeter struct {
	frames int
	start  float32
	value  float64
}

// frame counts one frame at time now (seconds) and reports a new average
// when a window closes.
func (m *fpsMeter) frame(now float32) (float64, bool) {
	m.frames++
	elapsed := now - m.start
	if elapsed < 1 {
		return m.value, false
	}
	m.value = float64(m.frames) / float64(elapsed)
	m.frames = 0
	m.start = now
	return m.value, true
}
