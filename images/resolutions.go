package images

import (
	"fmt"
	"math"
	"strings"
)

// Resolution is a named camera capture mode.
type Resolution struct {
	Name        string `json:"name" yaml:"name"`
	AspectRatio string `json:"aspect_ratio" yaml:"aspect_ratio"`
	Width       int    `json:"width" yaml:"width"`
	Height      int    `json:"height" yaml:"height"`
}

// MegaPixels returns the pixel count in millions, rounded to two decimals.
func (r Resolution) MegaPixels() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return math.Round(float64(r.Width*r.Height)/1e4) / 100
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %s, %.2fMP)", r.Name, r.Width, r.Height, r.AspectRatio, r.MegaPixels())
}

// Resolutions lists the capture modes webcams commonly offer, smallest first.
var Resolutions = []Resolution{
	{Name: "qvga", AspectRatio: "4:3", Width: 320, Height: 240},
	{Name: "nhd", AspectRatio: "16:9", Width: 640, Height: 360},
	{Name: "vga", AspectRatio: "4:3", Width: 640, Height: 480},
	{Name: "svga", AspectRatio: "4:3", Width: 800, Height: 600},
	{Name: "qhd540", AspectRatio: "16:9", Width: 960, Height: 540},
	{Name: "hd720", AspectRatio: "16:9", Width: 1280, Height: 720},
	{Name: "sxga", AspectRatio: "5:4", Width: 1280, Height: 1024},
	{Name: "uxga", AspectRatio: "4:3", Width: 1600, Height: 1200},
	{Name: "fhd1080", AspectRatio: "16:9", Width: 1920, Height: 1080},
	{Name: "qhd1440", AspectRatio: "16:9", Width: 2560, Height: 1440},
	{Name: "uhd4k", AspectRatio: "16:9", Width: 3840, Height: 2160},
}

var resolutionAliases = map[string]string{
	"480p":  "vga",
	"540p":  "qhd540",
	"720p":  "hd720",
	"1080p": "fhd1080",
	"1440p": "qhd1440",
	"4k":    "uhd4k",
	"2160p": "uhd4k",
}

// LookupResolution finds a capture mode by name or alias such as "720p",
// case-insensitively.
//
// Arguments:
//   - name: The resolution name.
//
// Returns:
//   - Resolution: The matching resolution.
//   - bool: False if no resolution has that name.
func LookupResolution(name string) (Resolution, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := resolutionAliases[name]; ok {
		name = alias
	}
	for _, r := range Resolutions {
		if r.Name == name {
			return r, true
		}
	}
	return Resolution{}, false
}
