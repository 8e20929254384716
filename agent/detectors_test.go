package agent

import (
	"context"
	"errors"
	"math"
	"testing"

	"proctorhub/internal/model"
)

// solidFrame builds a frame filled with one RGBA color.
func solidFrame(w, h int, r, g, b byte) *Frame {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i] = r
		pix[i+1] = g
		pix[i+2] = b
		pix[i+3] = 255
	}
	return &Frame{Width: w, Height: h, Pix: pix}
}

type stubFrames struct {
	frame *Frame
	err   error
}

func (s *stubFrames) LatestFrame() (*Frame, error) { return s.frame, s.err }

func TestDarkFrameDetector(t *testing.T) {
	d := &darkFrameDetector{frames: &stubFrames{frame: solidFrame(32, 32, 5, 5, 5)}}
	findings, err := d.Check(context.Background())
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(findings) != 1 || findings[0].Type != model.ViolationDarkFrame {
		t.Fatalf("Expected dark-frame finding, got %+v", findings)
	}
	if findings[0].Severity != model.SeverityHigh || !findings[0].Snapshot {
		t.Errorf("Dark frame should be high severity with snapshot")
	}

	d.frames = &stubFrames{frame: solidFrame(32, 32, 200, 200, 200)}
	findings, _ = d.Check(context.Background())
	if len(findings) != 0 {
		t.Errorf("Bright frame should not trigger, got %+v", findings)
	}
}

func TestDarkFrameDetectorSkipsWhenCameraUnavailable(t *testing.T) {
	d := &darkFrameDetector{frames: &stubFrames{err: errors.New("no camera")}}
	findings, err := d.Check(context.Background())
	if findings != nil {
		t.Errorf("Unavailable camera should produce no findings")
	}
	if err == nil {
		t.Error("Expected the capability error to be surfaced for the skip")
	}
}

func TestFrozenFrameDetector(t *testing.T) {
	frame := solidFrame(32, 32, 120, 100, 90)
	src := &stubFrames{frame: frame}
	d := &frozenFrameDetector{frames: src}

	// The same frame has to repeat past the limit before it counts.
	for i := 0; i <= frozenRepeatLimit; i++ {
		findings, err := d.Check(context.Background())
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if i < frozenRepeatLimit && len(findings) != 0 {
			t.Fatalf("Cycle %d should not trigger yet", i)
		}
		if i == frozenRepeatLimit && (len(findings) != 1 || findings[0].Type != model.ViolationFrozenFrame) {
			t.Fatalf("Cycle %d should report frozen-frame, got %+v", i, findings)
		}
	}

	// A changed frame resets the run.
	src.frame = solidFrame(32, 32, 10, 200, 30)
	if findings, _ := d.Check(context.Background()); len(findings) != 0 {
		t.Errorf("Changed frame should reset the freeze counter")
	}
}

func TestFaceHeuristicDetector(t *testing.T) {
	// Skin-toned frame: no finding.
	d := &faceHeuristicDetector{frames: &stubFrames{frame: solidFrame(32, 32, 210, 160, 130)}}
	if findings, _ := d.Check(context.Background()); len(findings) != 0 {
		t.Errorf("Skin-toned frame should pass, got %+v", findings)
	}

	// Bright gray frame with no skin tones: absence.
	d.frames = &stubFrames{frame: solidFrame(32, 32, 180, 180, 180)}
	findings, _ := d.Check(context.Background())
	if len(findings) != 1 || findings[0].Type != model.ViolationFaceAbsence {
		t.Fatalf("Expected face-absence, got %+v", findings)
	}

	// Dark frame: skipped so the dark-frame detector owns it.
	d.frames = &stubFrames{frame: solidFrame(32, 32, 5, 5, 5)}
	if findings, _ := d.Check(context.Background()); len(findings) != 0 {
		t.Errorf("Dark frame should be skipped, got %+v", findings)
	}
}

type stubFaces struct {
	boxes []Box
	err   error
}

func (s *stubFaces) Detect(frame *Frame) ([]Box, error) { return s.boxes, s.err }

func TestFaceCountDetector(t *testing.T) {
	frame := solidFrame(100, 100, 200, 170, 150)
	cases := []struct {
		name     string
		boxes    []Box
		wantType string
		wantSev  model.Severity
	}{
		{"absence", nil, model.ViolationFaceAbsence, model.SeverityHigh},
		{"multiple", []Box{{10, 10, 20, 20}, {60, 10, 20, 20}}, model.ViolationMultipleFaces, model.SeverityHigh},
		{"looking down", []Box{{40, 70, 20, 20}}, model.ViolationLookingDown, model.SeverityMedium},
		{"looking away", []Box{{0, 40, 10, 20}}, model.ViolationLookingAway, model.SeverityMedium},
	}

	for _, tc := range cases {
		d := &faceCountDetector{
			frames: &stubFrames{frame: frame},
			faces:  &stubFaces{boxes: tc.boxes},
		}
		findings, err := d.Check(context.Background())
		if err != nil {
			t.Fatalf("%s: Check failed: %v", tc.name, err)
		}
		if len(findings) != 1 {
			t.Fatalf("%s: expected 1 finding, got %+v", tc.name, findings)
		}
		if findings[0].Type != tc.wantType || findings[0].Severity != tc.wantSev {
			t.Errorf("%s: got %s/%s, want %s/%s", tc.name,
				findings[0].Type, findings[0].Severity, tc.wantType, tc.wantSev)
		}
	}

	// Centered single face: nothing to report.
	d := &faceCountDetector{
		frames: &stubFrames{frame: frame},
		faces:  &stubFaces{boxes: []Box{{40, 40, 20, 20}}},
	}
	if findings, _ := d.Check(context.Background()); len(findings) != 0 {
		t.Errorf("Centered face should pass, got %+v", findings)
	}
}

type stubClassifier struct {
	detections []Detection
	closed     bool
}

func (s *stubClassifier) Classify(frame *Frame) ([]Detection, error) { return s.detections, nil }
func (s *stubClassifier) Close() error                               { s.closed = true; return nil }

func TestObjectDetector(t *testing.T) {
	classifier := &stubClassifier{detections: []Detection{
		{Label: "person", Confidence: 0.9},
		{Label: "person", Confidence: 0.8},
		{Label: "cell phone", Confidence: 0.7},
		{Label: "book", Confidence: 0.3}, // below confidence floor
	}}
	loader := NewClassifierLoader(func(ctx context.Context) (ObjectClassifier, error) {
		return classifier, nil
	})
	d := &objectDetector{
		frames: &stubFrames{frame: solidFrame(32, 32, 100, 100, 100)},
		loader: loader,
	}

	findings, err := d.Check(context.Background())
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	types := map[string]bool{}
	for _, f := range findings {
		types[f.Type] = true
	}
	if !types[model.ViolationPhone] {
		t.Error("Expected phone-detected")
	}
	if !types[model.ViolationMultiplePeople] {
		t.Error("Expected multiple-people for 2 persons")
	}
	if types[model.ViolationBook] {
		t.Error("Low-confidence book should be ignored")
	}
}

type stubAudio struct {
	samples []float64
	err     error
}

func (s *stubAudio) Samples() ([]float64, error) { return s.samples, s.err }

func TestAudioDetector(t *testing.T) {
	loud := make([]float64, 256)
	for i := range loud {
		loud[i] = 0.5 * math.Sin(float64(i)/8)
	}
	d := &audioDetector{audio: &stubAudio{samples: loud}}
	findings, _ := d.Check(context.Background())
	if len(findings) != 1 || findings[0].Type != model.ViolationAudio {
		t.Fatalf("Expected background-audio, got %+v", findings)
	}
	if findings[0].Severity != model.SeverityLow {
		t.Errorf("Background audio should be low severity")
	}

	quiet := make([]float64, 256)
	d.audio = &stubAudio{samples: quiet}
	if findings, _ := d.Check(context.Background()); len(findings) != 0 {
		t.Errorf("Silence should not trigger, got %+v", findings)
	}
}

type stubProbe struct {
	open bool
	err  error
}

func (s *stubProbe) InspectorOpen() (bool, error) { return s.open, s.err }

func TestToolingDetector(t *testing.T) {
	d := &toolingDetector{probe: &stubProbe{open: true}}
	findings, _ := d.Check(context.Background())
	if len(findings) != 1 || findings[0].Type != model.ViolationDevtools {
		t.Fatalf("Expected devtools-open, got %+v", findings)
	}
	if findings[0].Snapshot {
		t.Error("Tooling probe findings carry no snapshot")
	}

	d.probe = &stubProbe{open: false}
	if findings, _ := d.Check(context.Background()); len(findings) != 0 {
		t.Errorf("Closed inspector should not trigger")
	}
}
