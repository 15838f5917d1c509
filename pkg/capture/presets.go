// Package capture produces the frames a presenter submits to the
// session. The built-in source renders a synthetic test pattern; real
// screen grabbers plug in behind the same Source interface.
package capture

import (
	"strconv"
	"strings"

	"github.com/tomaslejdung/gomeet/pkg/session"
)

// FPSPreset defines a framerate preset.
type FPSPreset struct {
	Value       int
	Name        string
	Description string
}

// FPS presets from lowest to highest.
var FPSPresets = []FPSPreset{
	{Value: 5, Name: "5", Description: "poll friendly"},
	{Value: 15, Name: "15", Description: "low power"},
	{Value: 24, Name: "24", Description: "cinematic"},
	{Value: 30, Name: "30", Description: "standard"},
	{Value: 60, Name: "60", Description: "smooth"},
	{Value: 120, Name: "120", Description: "ultra smooth"},
}

// DefaultFPSIndex returns the index of the default FPS preset (30).
func DefaultFPSIndex() int {
	return 3 // 30 fps
}

// ParseFPSFlag parses the --fps flag value.
func ParseFPSFlag(value string) int {
	value = strings.TrimSpace(value)

	if fps, err := strconv.Atoi(value); err == nil && fps > 0 {
		return fps
	}

	return FPSPresets[DefaultFPSIndex()].Value
}

// QualityPreset defines a JPEG quality preset.
type QualityPreset struct {
	Name        string
	Quality     int    // JPEG quality, 1-100
	Description string // short description for UI
}

// Quality presets from lowest to highest.
var QualityPresets = []QualityPreset{
	{Name: "Low", Quality: 40, Description: "smallest frames"},
	{Name: "Medium", Quality: 65, Description: "balanced"},
	{Name: "High", Quality: 85, Description: "sharp"},
	{Name: "Max", Quality: 95, Description: "near lossless"},
}

// DefaultQualityIndex returns the index of the default quality preset (High).
func DefaultQualityIndex() int {
	return 2 // High
}

// QualityByName finds a quality preset by name (case-insensitive).
func QualityByName(name string) *QualityPreset {
	name = strings.ToLower(name)
	for i := range QualityPresets {
		if strings.ToLower(QualityPresets[i].Name) == name {
			return &QualityPresets[i]
		}
	}
	return nil
}

// ParseQualityFlag parses the --quality flag value and returns a JPEG
// quality. Accepts preset names, legacy short names and bare numbers.
func ParseQualityFlag(value string) int {
	value = strings.ToLower(strings.TrimSpace(value))

	switch value {
	case "lo", "low":
		return QualityPresets[0].Quality
	case "med", "medium":
		return QualityPresets[1].Quality
	case "hi", "high":
		return QualityPresets[2].Quality
	case "max":
		return QualityPresets[3].Quality
	}

	if preset := QualityByName(value); preset != nil {
		return preset.Quality
	}
	if q, err := strconv.Atoi(value); err == nil && q >= 1 && q <= 100 {
		return q
	}

	return QualityPresets[DefaultQualityIndex()].Quality
}

// SupportedLimits declares the ranges the built-in source honors.
func SupportedLimits() session.Limits {
	return session.DefaultLimits()
}
