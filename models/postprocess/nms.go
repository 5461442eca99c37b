package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-overlay/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"` // Overlap threshold for suppression.
	ClassAware   bool    `json:"class_aware"   yaml:"class_aware"`   // If true, suppress only within same class.
}

// DefaultNMSConfig suppresses same-class boxes overlapping by more than 0.45.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{IoUThreshold: 0.45, ClassAware: true}
}

// ApplyNMS performs greedy Non-Maximum Suppression.
//
// Arguments:
//   - detections: Candidate boxes in any order. The slice is sorted in place
//     by descending score.
//   - config: NMS configuration.
//
// Returns:
//   - []Result: The kept boxes, highest score first. Nil if detections is empty.
func ApplyNMS(detections []Result, config NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Score > detections[j].Score
	})

	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.Class != detections[j].Class {
				continue
			}
			if images.CalculateIoU(anchor.Box, detections[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
