package detect

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yixinin/camsight/pipeline"
)

// Normalize turns raw model outputs into detections. Two layouts are
// understood:
//
//   - a pair of outputs whose names contain "box" and "score", shaped
//     [1,priors,4] as (ymin,xmin,ymax,xmax) and [1,classes,priors];
//     class 0 is background.
//   - a single [1,1,N,7] output of (imageId,label,score,xmin,ymin,xmax,ymax).
//
// Outputs whose data does not match their dims are skipped. Anything else
// yields no detections.
func Normalize(outputs map[string]Tensor, threshold float32) []pipeline.Detection {
	names := make([]string, 0, len(outputs))
	for name, t := range outputs {
		if err := t.Validate(); err != nil {
			logrus.WithField("output", name).Debugf("skip output %v:%v", t.Dims, err)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	boxes, okBoxes := find(outputs, names, "box")
	scores, okScores := find(outputs, names, "score")
	if okBoxes && okScores {
		return paired(boxes, scores, threshold)
	}
	for _, name := range names {
		if t := outputs[name]; isFlat(t) {
			return flat(t, threshold)
		}
	}
	return []pipeline.Detection{}
}

func find(outputs map[string]Tensor, names []string, key string) (Tensor, bool) {
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), key) {
			return outputs[name], true
		}
	}
	return Tensor{}, false
}

func paired(boxes, scores Tensor, threshold float32) []pipeline.Detection {
	dets := []pipeline.Detection{}
	if len(boxes.Dims) != 3 || len(scores.Dims) != 3 {
		return dets
	}
	classes, scorePriors := scores.Dims[1], scores.Dims[2]
	priors := boxes.Dims[1]
	if scorePriors < priors {
		priors = scorePriors
	}
	if len(boxes.Data) < priors*4 || len(scores.Data) < classes*scorePriors {
		return dets
	}

	for i := 0; i < priors; i++ {
		best, bestScore := 0, float32(0)
		for c := 1; c < classes; c++ {
			if s := scores.Data[c*scorePriors+i]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if best == 0 || bestScore < threshold {
			continue
		}
		b := boxes.Data[i*4 : i*4+4]
		dets = append(dets, pipeline.Detection{
			Label: strconv.Itoa(best),
			Score: bestScore,
			Box:   pipeline.Box{YMin: b[0], XMin: b[1], YMax: b[2], XMax: b[3]},
		})
	}
	return dets
}

func isFlat(t Tensor) bool {
	return len(t.Dims) == 4 && t.Dims[2] > 0 && t.Dims[3] == 7 && len(t.Data) >= t.Dims[2]*7
}

func flat(t Tensor, threshold float32) []pipeline.Detection {
	dets := []pipeline.Detection{}
	for i := 0; i < t.Dims[2]; i++ {
		row := t.Data[i*7 : i*7+7]
		if row[2] < threshold {
			continue
		}
		dets = append(dets, pipeline.Detection{
			Label: strconv.FormatFloat(float64(row[1]), 'f', -1, 32),
			Score: row[2],
			Box:   pipeline.Box{XMin: row[3], YMin: row[4], XMax: row[5], YMax: row[6]},
		})
	}
	return dets
}
