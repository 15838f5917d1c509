package session

// CaptureSettings are the session-wide parameters the capture
// subsystem honors. A change takes effect on the capture loop's next
// cycle, never retroactively.
type CaptureSettings struct {
	FPS     int `json:"fps"`
	Quality int `json:"quality"` // JPEG quality, 1-100
	Width   int `json:"width"`
	Height  int `json:"height"`
	Monitor int `json:"monitor"` // monitor index, 0-based
}

// Limits are the ranges the capture subsystem declares as supported.
// Settings updates are clamped to them.
type Limits struct {
	MinFPS, MaxFPS         int
	MinQuality, MaxQuality int
	MaxWidth, MaxHeight    int
	Monitors               int
}

// DefaultLimits matches the built-in test-pattern source.
func DefaultLimits() Limits {
	return Limits{
		MinFPS:     1,
		MaxFPS:     120,
		MinQuality: 1,
		MaxQuality: 100,
		MaxWidth:   3840,
		MaxHeight:  2160,
		Monitors:   1,
	}
}

// DefaultSettings returns the initial capture settings.
func DefaultSettings() CaptureSettings {
	return CaptureSettings{
		FPS:     30,
		Quality: 85,
		Width:   1280,
		Height:  720,
		Monitor: 0,
	}
}

// Clamp forces cs into the supported ranges. Zero fields fall back to
// defaults so partial updates keep the rest of the settings intact.
func (l Limits) Clamp(cs CaptureSettings) CaptureSettings {
	def := DefaultSettings()
	if cs.FPS == 0 {
		cs.FPS = def.FPS
	}
	if cs.Quality == 0 {
		cs.Quality = def.Quality
	}
	if cs.Width == 0 || cs.Height == 0 {
		cs.Width, cs.Height = def.Width, def.Height
	}
	cs.FPS = clampInt(cs.FPS, l.MinFPS, l.MaxFPS)
	cs.Quality = clampInt(cs.Quality, l.MinQuality, l.MaxQuality)
	cs.Width = clampInt(cs.Width, 16, l.MaxWidth)
	cs.Height = clampInt(cs.Height, 16, l.MaxHeight)
	cs.Monitor = clampInt(cs.Monitor, 0, l.Monitors-1)
	return cs
}

// UpdateSettings validates, clamps and stores new capture settings.
// The capture subsystem reads them before producing its next frame.
func (s *Session) UpdateSettings(cs CaptureSettings) (CaptureSettings, error) {
	if cs.FPS < 0 || cs.Quality < 0 || cs.Width < 0 || cs.Height < 0 || cs.Monitor < 0 {
		return CaptureSettings{}, ErrValidation
	}

	clamped := s.limits.Clamp(cs)

	s.mu.Lock()
	s.settings = clamped
	s.mu.Unlock()
	return clamped, nil
}

// Settings returns the current capture settings.
func (s *Session) Settings() CaptureSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SettingsLimits returns the declared supported ranges.
func (s *Session) SettingsLimits() Limits { return s.limits }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
