// Package postprocess - Decodes raw model output tensors into scored detections.
package postprocess

import "github.com/nvr-ai/go-overlay/images"

// Result represents a single scored box in model input pixels.
type Result struct {
	// The bounding box of the result.
	Box images.Rect
	// The confidence score of the result.
	Score float32
	// The predicted class index of the result.
	Class int
}

// KeypointResult is the best keypoint set found in one output tensor.
type KeypointResult struct {
	// Points are x, y pairs in model input pixels.
	Points []float32
	// Score is the anchor confidence.
	Score float32
	// Anchor is the index of the winning anchor.
	Anchor int
}
