// Package detection - Detection data model, record parsing and the shared detection store.
package detection

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Mode selects which model behaviour the inference engine runs and which
// detection variant the renderer draws.
type Mode int

const (
	// ModeObjectDetection produces class-labelled boxes.
	ModeObjectDetection Mode = 1
	// ModeKeypointDetection produces keypoint sets without class identity.
	ModeKeypointDetection Mode = 2
	// ModeSegmentation is accepted by the engine but yields nothing drawable.
	ModeSegmentation Mode = 3
)

// ErrUnknownMode is returned when a mode name or id is not recognised.
var ErrUnknownMode = errors.New("unknown detection mode")

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeObjectDetection:
		return "detect"
	case ModeKeypointDetection:
		return "keypoints"
	case ModeSegmentation:
		return "segment"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m >= ModeObjectDetection && m <= ModeSegmentation
}

// ParseMode resolves a mode from its configuration name or numeric id.
//
// Arguments:
//   - s: A name such as "detect", "keypoints", "segment" or an id "1".."3".
//
// Returns:
//   - Mode: The parsed mode.
//   - error: ErrUnknownMode if s does not name a mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "detect", "detection", "object", "boxes":
		return ModeObjectDetection, nil
	case "keypoints", "keypoint", "pose":
		return ModeKeypointDetection, nil
	case "segment", "segmentation":
		return ModeSegmentation, nil
	}
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err == nil && Mode(id).Valid() {
		return Mode(id), nil
	}
	return 0, errors.Wrapf(ErrUnknownMode, "%q", s)
}

// MarshalText implements encoding.TextMarshaler so modes read naturally in yaml.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, errors.Wrapf(ErrUnknownMode, "%d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
