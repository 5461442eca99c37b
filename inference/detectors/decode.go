package detectors

import (
	"github.com/nvr-ai/go-overlay/detection"
	"github.com/nvr-ai/go-overlay/images"
	"github.com/nvr-ai/go-overlay/models/postprocess"
	"github.com/pkg/errors"
)

// outputShape resolves the output tensor shape of a mode's model. Dynamic
// dimensions reported by the model (<= 0) are filled in from the config.
func outputShape(cfg Config, mode detection.Mode, dims []int64) ([]int64, error) {
	var rows int64
	switch mode {
	case detection.ModeObjectDetection:
		rows = int64(4 + cfg.NumClasses)
	case detection.ModeKeypointDetection:
		rows = int64(5 + 2*cfg.NumKeypoints)
	default:
		return nil, errors.Wrapf(detection.ErrUnknownMode, "no output shape for %s", mode)
	}

	if len(dims) == 0 {
		return []int64{1, rows, cfg.anchors()}, nil
	}

	shape := make([]int64, len(dims))
	copy(shape, dims)
	if shape[0] <= 0 {
		shape[0] = 1
	}
	if mode == detection.ModeObjectDetection && cfg.Layout == LayoutRows {
		for i := 1; i < len(shape); i++ {
			if shape[i] <= 0 {
				return nil, errors.Errorf("dynamic dimension %d in detection rows output %v", i, dims)
			}
		}
		return shape, nil
	}

	if len(shape) != 3 {
		return nil, errors.Wrapf(postprocess.ErrOutputShape, "want [batch, rows, anchors], got %v", dims)
	}
	if shape[1] <= 0 {
		shape[1] = rows
	}
	if shape[2] <= 0 {
		shape[2] = cfg.anchors()
	}
	return shape, nil
}

// decodeRecords turns one raw output tensor into records in frame pixels.
//
// Arguments:
//   - cfg: The engine configuration.
//   - mode: The mode the model was loaded for.
//   - output: The output tensor data.
//   - shape: The resolved output shape.
//   - lb: The letterbox placement of the frame inside the model input.
//
// Returns:
//   - [][]float32: Box records [classId, x, y, w, h] or one keypoint record.
//   - error: An error if the output does not match shape.
func decodeRecords(cfg Config, mode detection.Mode, output []float32, shape []int64, lb images.LetterboxInfo) ([][]float32, error) {
	switch mode {
	case detection.ModeObjectDetection:
		var (
			results []postprocess.Result
			err     error
		)
		if cfg.Layout == LayoutRows {
			cols := int(shape[len(shape)-1])
			if cols <= 0 {
				return nil, errors.Wrapf(postprocess.ErrOutputShape, "detection rows: %v", shape)
			}
			results, err = postprocess.DecodeDetectionRows(output, len(output)/cols, cols, lb.Size, cfg.Confidence)
		} else {
			results, err = postprocess.DecodeYOLOBoxes(output, int(shape[1]), int(shape[2]), cfg.Confidence)
		}
		if err != nil {
			return nil, err
		}
		results = postprocess.ApplyNMS(results, postprocess.NMSConfig{IoUThreshold: cfg.IoUThreshold, ClassAware: true})
		return boxRecords(results, lb), nil

	case detection.ModeKeypointDetection:
		kp, ok, err := postprocess.DecodeKeypoints(output, int(shape[1]), int(shape[2]), cfg.NumKeypoints, cfg.KeypointConfidence)
		if err != nil || !ok {
			return nil, err
		}
		return [][]float32{keypointRecord(kp, lb)}, nil
	}
	return nil, nil
}

// boxRecords maps boxes from model input pixels to frame pixels.
func boxRecords(results []postprocess.Result, lb images.LetterboxInfo) [][]float32 {
	records := make([][]float32, 0, len(results))
	for _, r := range results {
		x, y := lb.ToSource(r.Box.X1, r.Box.Y1)
		records = append(records, []float32{
			float32(r.Class),
			x,
			y,
			lb.LengthToSource(r.Box.Width()),
			lb.LengthToSource(r.Box.Height()),
		})
	}
	return records
}

// keypointRecord maps keypoints from model input pixels to frame pixels.
func keypointRecord(kp postprocess.KeypointResult, lb images.LetterboxInfo) []float32 {
	record := make([]float32, len(kp.Points))
	for i := 0; i+1 < len(kp.Points); i += 2 {
		record[i], record[i+1] = lb.ToSource(kp.Points[i], kp.Points[i+1])
	}
	return record
}
