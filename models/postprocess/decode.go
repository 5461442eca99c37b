package postprocess

import (
	"github.com/nvr-ai/go-overlay/images"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrOutputShape is returned when an output tensor does not match the layout
// a decoder expects.
var ErrOutputShape = errors.New("unexpected output shape")

// DecodeYOLOBoxes decodes a YOLOv8 detection head laid out as
// [4+classes, anchors] (cx, cy, w, h, then one score row per class).
//
// Arguments:
//   - output: The raw output data, row major.
//   - rows: 4 plus the number of classes.
//   - anchors: The number of anchor columns.
//   - threshold: Minimum class score to keep a box.
//
// Returns:
//   - []Result: Candidate boxes in model input pixels, before suppression.
//   - error: ErrOutputShape if the data does not match rows x anchors.
func DecodeYOLOBoxes(output []float32, rows, anchors int, threshold float32) ([]Result, error) {
	if rows < 5 || anchors <= 0 || len(output) < rows*anchors {
		return nil, errors.Wrapf(ErrOutputShape, "yolo boxes: %d values for %dx%d", len(output), rows, anchors)
	}

	// Transpose to one row per anchor so each candidate is contiguous.
	backing := make([]float32, rows*anchors)
	copy(backing, output[:rows*anchors])
	t := tensor.New(tensor.WithShape(rows, anchors), tensor.WithBacking(backing))
	if err := t.T(); err != nil {
		return nil, errors.Wrap(err, "transpose output")
	}
	if err := t.Transpose(); err != nil {
		return nil, errors.Wrap(err, "materialise transpose")
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Wrapf(ErrOutputShape, "yolo boxes: backing is %T", t.Data())
	}

	var results []Result
	for a := 0; a < anchors; a++ {
		row := data[a*rows : (a+1)*rows]

		bestClass, bestScore := -1, threshold
		for c, score := range row[4:] {
			if score >= bestScore {
				bestClass, bestScore = c, score
			}
		}
		if bestClass < 0 {
			continue
		}

		results = append(results, Result{
			Box:   images.RectFromCenter(row[0], row[1], row[2], row[3]),
			Score: bestScore,
			Class: bestClass,
		})
	}
	return results, nil
}

// DecodeDetectionRows decodes a detection-output layer with one row per
// detection: [label, score, x1, y1, x2, y2, ...] where the corners are
// normalised to the input size and labels are 1-based with 0 as background.
//
// Arguments:
//   - output: The raw output data, row major.
//   - count: The number of rows.
//   - cols: The number of values per row, at least 6.
//   - inputSize: The side of the square model input.
//   - threshold: Minimum score to keep a row.
//
// Returns:
//   - []Result: Boxes in model input pixels with 0-based classes.
//   - error: ErrOutputShape if the data does not match count x cols.
func DecodeDetectionRows(output []float32, count, cols, inputSize int, threshold float32) ([]Result, error) {
	if cols < 6 || count < 0 || len(output) < count*cols {
		return nil, errors.Wrapf(ErrOutputShape, "detection rows: %d values for %dx%d", len(output), count, cols)
	}

	size := float32(inputSize)
	var results []Result
	for i := 0; i < count; i++ {
		row := output[i*cols : (i+1)*cols]
		if row[1] < threshold || row[0] < 1 {
			continue
		}
		results = append(results, Result{
			Box:   images.Rect{X1: row[2] * size, Y1: row[3] * size, X2: row[4] * size, Y2: row[5] * size},
			Score: row[1],
			Class: int(row[0]) - 1,
		})
	}
	return results, nil
}

// DecodeKeypoints finds the single most confident anchor of a YOLOv8 pose
// head laid out as [5+2*keypoints, anchors]: cx, cy, w, h, confidence, then
// an x row and a y row per keypoint.
//
// Arguments:
//   - output: The raw output data, row major.
//   - rows: The number of rows, at least 5+2*keypoints.
//   - anchors: The number of anchor columns.
//   - keypoints: The number of keypoints per anchor.
//   - threshold: Minimum confidence to accept an anchor.
//
// Returns:
//   - KeypointResult: The winning anchor's keypoints.
//   - bool: False if no anchor reached threshold.
//   - error: ErrOutputShape if the data does not match the layout.
func DecodeKeypoints(output []float32, rows, anchors, keypoints int, threshold float32) (KeypointResult, bool, error) {
	if keypoints <= 0 || rows < 5+2*keypoints || anchors <= 0 || len(output) < rows*anchors {
		return KeypointResult{}, false, errors.Wrapf(ErrOutputShape,
			"keypoints: %d values for %dx%d with %d keypoints", len(output), rows, anchors, keypoints)
	}

	conf := output[4*anchors : 5*anchors]
	best := -1
	var bestConf float32
	for a, c := range conf {
		if c < threshold || c <= bestConf {
			continue
		}
		best, bestConf = a, c
	}
	if best < 0 {
		return KeypointResult{}, false, nil
	}

	points := make([]float32, 0, 2*keypoints)
	for k := 0; k < keypoints; k++ {
		points = append(points,
			output[(5+2*k)*anchors+best],
			output[(6+2*k)*anchors+best],
		)
	}
	return KeypointResult{Points: points, Score: bestConf, Anchor: best}, true, nil
}
