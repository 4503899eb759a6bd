// Package nn interfaces the neural action classifier. The model itself is an
// external collaborator; the pipeline only depends on the batch contract.
package nn

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/watchgrid/watchgrid/internal/packet"
	"github.com/watchgrid/watchgrid/internal/vision"
)

// TubeSample is one classifier input: a fixed-length run of context crops
// plus the box ROI inside them. A sample with an empty TubeID is a dummy
// used to pad the batch; its result is discarded.
type TubeSample struct {
	Images []packet.Frame
	ROI    vision.ROI
	CamID  string
	TubeID string
}

// Dummy reports whether the sample only pads the batch.
func (s TubeSample) Dummy() bool { return s.TubeID == "" }

// NewDummySample returns a gray tube of the given length, centered ROI.
func NewDummySample(tubeSize int) TubeSample {
	imgs := make([]packet.Frame, tubeSize)
	for i := range imgs {
		imgs[i] = packet.Uniform(vision.CropSize, vision.CropSize, 0x80)
	}
	return TubeSample{Images: imgs, ROI: vision.ROI{0.25, 0.25, 0.75, 0.75}}
}

// ActionClassifier scores a batch of tube samples. The result must hold one
// probability vector per input sample; anything else is a model error and
// the caller drops the batch.
type ActionClassifier interface {
	Classify(batch []TubeSample) ([][]float64, error)
	Classes() []string
}

// LoadClasses reads the classifier's class-name list, one per line.
func LoadClasses(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read class list: %w", err)
	}
	defer f.Close()

	var classes []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		classes = append(classes, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("class list %s is empty", path)
	}
	return classes, nil
}
