package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"proctorhub/internal/model"
)

// Detection thresholds. Fixed by contract, not tunable per exam.
const (
	darkLuminanceFloor = 40.0 // mean luma below this is a covered camera
	frozenRepeatLimit  = 3    // identical hashes before the feed counts as frozen
	skinRatioFloor     = 0.02 // sampled skin-tone fraction below this means no face
	audioRMSFloor      = 0.12 // normalized RMS above this is background audio
	pasteBurstChars    = 30   // input growth in one event that counts as a paste
	objectConfidence   = 0.5
)

// Detector intervals.
const (
	frameInterval  = 5 * time.Second
	objectInterval = 10 * time.Second
	audioInterval  = 3 * time.Second
	probeInterval  = 2 * time.Second
)

// Finding is one violation candidate produced by a detector cycle.
type Finding struct {
	Type        string
	Severity    model.Severity
	Description string
	Snapshot    bool
}

// Detector runs on its own fixed interval. Check returns no findings
// and an error to skip a cycle when the underlying capability is
// unavailable; it must never block on another detector.
type Detector interface {
	Name() string
	Interval() time.Duration
	Check(ctx context.Context) ([]Finding, error)
}

// darkFrameDetector flags a covered or disabled camera.
type darkFrameDetector struct {
	frames FrameSource
}

func (d *darkFrameDetector) Name() string            { return "dark-frame" }
func (d *darkFrameDetector) Interval() time.Duration { return frameInterval }

func (d *darkFrameDetector) Check(ctx context.Context) ([]Finding, error) {
	frame, err := d.frames.LatestFrame()
	if err != nil || frame == nil {
		return nil, err
	}
	if averageLuminance(frame) < darkLuminanceFloor {
		return []Finding{{
			Type:        model.ViolationDarkFrame,
			Severity:    model.SeverityHigh,
			Description: "camera feed is dark, possibly covered",
			Snapshot:    true,
		}}, nil
	}
	return nil, nil
}

// frozenFrameDetector flags a camera feed stuck on one image.
type frozenFrameDetector struct {
	frames   FrameSource
	lastHash uint64
	repeats  int
}

func (d *frozenFrameDetector) Name() string            { return "frozen-frame" }
func (d *frozenFrameDetector) Interval() time.Duration { return frameInterval }

func (d *frozenFrameDetector) Check(ctx context.Context) ([]Finding, error) {
	frame, err := d.frames.LatestFrame()
	if err != nil || frame == nil {
		return nil, err
	}
	hash := frameHash(frame)
	if hash == d.lastHash {
		d.repeats++
	} else {
		d.repeats = 0
		d.lastHash = hash
	}
	if d.repeats >= frozenRepeatLimit {
		return []Finding{{
			Type:        model.ViolationFrozenFrame,
			Severity:    model.SeverityHigh,
			Description: "camera feed appears frozen",
			Snapshot:    true,
		}}, nil
	}
	return nil, nil
}

// faceHeuristicDetector is the fallback when no native face detector is
// available: a skin-tone ratio floor, skipped while the frame is dark
// so a covered camera does not double-report.
type faceHeuristicDetector struct {
	frames FrameSource
}

func (d *faceHeuristicDetector) Name() string            { return "face-heuristic" }
func (d *faceHeuristicDetector) Interval() time.Duration { return frameInterval }

func (d *faceHeuristicDetector) Check(ctx context.Context) ([]Finding, error) {
	frame, err := d.frames.LatestFrame()
	if err != nil || frame == nil {
		return nil, err
	}
	if averageLuminance(frame) < darkLuminanceFloor {
		return nil, nil
	}
	if skinRatio(frame) < skinRatioFloor {
		return []Finding{{
			Type:        model.ViolationFaceAbsence,
			Severity:    model.SeverityHigh,
			Description: "no face visible in frame",
			Snapshot:    true,
		}}, nil
	}
	return nil, nil
}

// faceCountDetector uses the native face detector: absence, multiple
// faces, and a coarse gaze check from the bounding-box position.
type faceCountDetector struct {
	frames FrameSource
	faces  FaceDetector
}

func (d *faceCountDetector) Name() string            { return "face-count" }
func (d *faceCountDetector) Interval() time.Duration { return frameInterval }

func (d *faceCountDetector) Check(ctx context.Context) ([]Finding, error) {
	frame, err := d.frames.LatestFrame()
	if err != nil || frame == nil {
		return nil, err
	}
	boxes, err := d.faces.Detect(frame)
	if err != nil {
		return nil, err
	}

	switch {
	case len(boxes) == 0:
		return []Finding{{
			Type:        model.ViolationFaceAbsence,
			Severity:    model.SeverityHigh,
			Description: "no face detected in frame",
			Snapshot:    true,
		}}, nil
	case len(boxes) > 1:
		return []Finding{{
			Type:        model.ViolationMultipleFaces,
			Severity:    model.SeverityHigh,
			Description: fmt.Sprintf("%d faces detected in frame", len(boxes)),
			Snapshot:    true,
		}}, nil
	}

	if frame.Width == 0 || frame.Height == 0 {
		return nil, nil
	}
	box := boxes[0]
	cx := float64(box.X+box.W/2) / float64(frame.Width)
	cy := float64(box.Y+box.H/2) / float64(frame.Height)
	if cy > 0.65 {
		return []Finding{{
			Type:        model.ViolationLookingDown,
			Severity:    model.SeverityMedium,
			Description: "candidate appears to be looking down",
			Snapshot:    true,
		}}, nil
	}
	if cx < 0.2 || cx > 0.8 {
		return []Finding{{
			Type:        model.ViolationLookingAway,
			Severity:    model.SeverityMedium,
			Description: "candidate appears to be looking away",
			Snapshot:    true,
		}}, nil
	}
	return nil, nil
}

// objectDetector flags phones, books, extra screens, and extra people
// when a classifier is available.
type objectDetector struct {
	frames FrameSource
	loader *ClassifierLoader
}

func (d *objectDetector) Name() string            { return "object-presence" }
func (d *objectDetector) Interval() time.Duration { return objectInterval }

func (d *objectDetector) Check(ctx context.Context) ([]Finding, error) {
	classifier, err := d.loader.Get(ctx)
	if err != nil || classifier == nil {
		return nil, err
	}
	frame, err := d.frames.LatestFrame()
	if err != nil || frame == nil {
		return nil, err
	}
	detections, err := classifier.Classify(frame)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	persons := 0
	for _, det := range detections {
		if det.Confidence < objectConfidence {
			continue
		}
		label := strings.ToLower(det.Label)
		switch {
		case label == "person":
			persons++
		case label == "cell phone" || label == "phone" || label == "remote":
			findings = append(findings, Finding{
				Type:        model.ViolationPhone,
				Severity:    model.SeverityHigh,
				Description: fmt.Sprintf("%s visible in frame", label),
				Snapshot:    true,
			})
		case label == "book" || label == "notebook":
			findings = append(findings, Finding{
				Type:        model.ViolationBook,
				Severity:    model.SeverityHigh,
				Description: fmt.Sprintf("%s visible in frame", label),
				Snapshot:    true,
			})
		case label == "tv" || label == "laptop" || label == "monitor" || label == "tablet":
			findings = append(findings, Finding{
				Type:        model.ViolationSecondDevice,
				Severity:    model.SeverityHigh,
				Description: fmt.Sprintf("second device (%s) visible in frame", label),
				Snapshot:    true,
			})
		}
	}
	if persons > 1 {
		findings = append(findings, Finding{
			Type:        model.ViolationMultiplePeople,
			Severity:    model.SeverityHigh,
			Description: fmt.Sprintf("%d people visible in frame", persons),
			Snapshot:    true,
		})
	}
	return findings, nil
}

// audioDetector flags sustained background sound.
type audioDetector struct {
	audio AudioSource
}

func (d *audioDetector) Name() string            { return "background-audio" }
func (d *audioDetector) Interval() time.Duration { return audioInterval }

func (d *audioDetector) Check(ctx context.Context) ([]Finding, error) {
	samples, err := d.audio.Samples()
	if err != nil || len(samples) == 0 {
		return nil, err
	}
	if rms(samples) > audioRMSFloor {
		return []Finding{{
			Type:        model.ViolationAudio,
			Severity:    model.SeverityLow,
			Description: "background audio detected",
			Snapshot:    true,
		}}, nil
	}
	return nil, nil
}

// toolingDetector polls the host-provided probe for an open inspection
// tool.
type toolingDetector struct {
	probe HostProbe
}

func (d *toolingDetector) Name() string            { return "tooling-probe" }
func (d *toolingDetector) Interval() time.Duration { return probeInterval }

func (d *toolingDetector) Check(ctx context.Context) ([]Finding, error) {
	open, err := d.probe.InspectorOpen()
	if err != nil {
		return nil, err
	}
	if open {
		return []Finding{{
			Type:        model.ViolationDevtools,
			Severity:    model.SeverityHigh,
			Description: "inspection tooling is open",
		}}, nil
	}
	return nil, nil
}

// restrictedCombos is the closed set of blocked shortcuts.
var restrictedCombos = map[string]bool{
	"ctrl+shift+i": true, // devtools
	"ctrl+shift+j": true, // devtools console
	"ctrl+shift+c": true, // devtools inspect
	"f12":          true, // devtools
	"ctrl+p":       true, // print
	"ctrl+a":       true, // select all
	"ctrl+s":       true, // save
	"ctrl+u":       true, // view source
	"f11":          true, // fullscreen toggle
}
