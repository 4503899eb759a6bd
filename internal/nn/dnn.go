package nn

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/watchgrid/watchgrid/internal/vision"
)

// DNNClassifier runs the action model through gocv's DNN module.
type DNNClassifier struct {
	net     gocv.Net
	classes []string
}

// NewDNNClassifier loads an ONNX action model and its class list.
func NewDNNClassifier(modelPath, classPath string) (*DNNClassifier, error) {
	classes, err := LoadClasses(classPath)
	if err != nil {
		return nil, err
	}
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("load action model %s", modelPath)
	}
	return &DNNClassifier{net: net, classes: classes}, nil
}

// Classes returns the model's class names by output index.
func (c *DNNClassifier) Classes() []string { return c.classes }

// Close releases the network.
func (c *DNNClassifier) Close() error { return c.net.Close() }

// Classify forwards one batch. Each sample's frames are stacked into a blob
// with the sample's ROI appended as a second input.
func (c *DNNClassifier) Classify(batch []TubeSample) ([][]float64, error) {
	res := make([][]float64, 0, len(batch))

	for _, sample := range batch {
		mats := make([]gocv.Mat, 0, len(sample.Images))
		for _, f := range sample.Images {
			m, err := vision.MatFromFrame(f)
			if err != nil {
				closeAll(mats)
				return nil, fmt.Errorf("sample %s-%s: %w", sample.CamID, sample.TubeID, err)
			}
			mats = append(mats, m)
		}

		blob := gocv.NewMat()
		gocv.BlobFromImages(mats, &blob, 1.0/255.0,
			image.Pt(vision.CropSize, vision.CropSize), gocv.NewScalar(0, 0, 0, 0), false, false, gocv.MatTypeCV32F)
		roi := gocv.NewMatWithSizeFromScalar(
			gocv.NewScalar(0, 0, 0, 0), 1, 4, gocv.MatTypeCV32F)
		for i := 0; i < 4; i++ {
			roi.SetFloatAt(0, i, float32(sample.ROI[i]))
		}

		c.net.SetInput(blob, "input_seq")
		c.net.SetInput(roi, "rois")
		out := c.net.Forward("pred_probs")

		probs, err := matRow(out)
		out.Close()
		roi.Close()
		blob.Close()
		closeAll(mats)
		if err != nil {
			return nil, err
		}
		res = append(res, probs)
	}
	return res, nil
}

func matRow(m gocv.Mat) ([]float64, error) {
	if m.Empty() {
		return nil, fmt.Errorf("model returned empty output")
	}
	total := m.Total()
	probs := make([]float64, total)
	flat, err := m.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("model output: %w", err)
	}
	for i := 0; i < total; i++ {
		probs[i] = float64(flat[i])
	}
	return probs, nil
}

func closeAll(mats []gocv.Mat) {
	for i := range mats {
		mats[i].Close()
	}
}
