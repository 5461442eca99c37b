package detection

import "github.com/chewxy/math32"

const (
	// BoxFields is the minimum record length of a box: classId, x, y, width, height.
	BoxFields = 5
	// MinKeypointFields is the minimum record length of a keypoint set.
	MinKeypointFields = 2
)

// ParseRecords decodes raw engine records into detections for the given mode.
//
// Box records are [classId, x, y, width, height, ...extra]; extra fields are
// ignored. Keypoint records are flat [x1, y1, x2, y2, ...] pairs. Records that
// are too short, odd-length keypoint records and records holding NaN or Inf
// are skipped. Segmentation records never produce drawable detections.
//
// Arguments:
//   - mode: The mode the engine ran in.
//   - records: The raw records of one inference call.
//
// Returns:
//   - []Detection: The decoded detections in record order.
//   - int: The number of records that were skipped as malformed.
func ParseRecords(mode Mode, records [][]float32) ([]Detection, int) {
	dets := make([]Detection, 0, len(records))
	skipped := 0

	for _, rec := range records {
		switch mode {
		case ModeObjectDetection:
			box, ok := parseBox(rec)
			if !ok {
				skipped++
				continue
			}
			dets = append(dets, box)
		case ModeKeypointDetection:
			kp, ok := parseKeypoints(rec)
			if !ok {
				skipped++
				continue
			}
			dets = append(dets, kp)
		default:
			// Segmentation output has no renderable form.
		}
	}

	return dets, skipped
}

func parseBox(rec []float32) (Box, bool) {
	if len(rec) < BoxFields || !finite(rec[:BoxFields]) {
		return Box{}, false
	}
	return Box{
		ClassID: int(rec[0]),
		X:       rec[1],
		Y:       rec[2],
		Width:   rec[3],
		Height:  rec[4],
	}, true
}

func parseKeypoints(rec []float32) (Keypoints, bool) {
	if len(rec) < MinKeypointFields || len(rec)%2 != 0 || !finite(rec) {
		return Keypoints{}, false
	}
	pts := make([]Point, 0, len(rec)/2)
	for i := 0; i < len(rec); i += 2 {
		pts = append(pts, Point{X: rec[i], Y: rec[i+1]})
	}
	return Keypoints{Points: pts}, true
}

func finite(vals []float32) bool {
	for _, v := range vals {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}
