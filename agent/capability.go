// Package agent is the candidate-side detection hook. It watches the
// capabilities the host shell provides (camera frames, microphone,
// UI events, native detectors) and reports violations to the proctoring
// gateway. Detectors degrade by skipping a cycle when a capability is
// missing or failing; nothing here may interrupt the exam UI.
package agent

import (
	"context"
	"fmt"
	"sync"
)

// Frame is one sampled video frame in RGBA order, 4 bytes per pixel.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// FrameSource supplies the most recent camera frame.
type FrameSource interface {
	LatestFrame() (*Frame, error)
}

// AudioSource supplies a short window of normalized microphone samples
// in [-1, 1].
type AudioSource interface {
	Samples() ([]float64, error)
}

// Box is a face bounding box in pixel coordinates.
type Box struct {
	X, Y, W, H int
}

// FaceDetector is an optional native face detector. When absent the
// agent falls back to the skin-tone heuristic.
type FaceDetector interface {
	Detect(frame *Frame) ([]Box, error)
}

// Detection is one classified object in a frame.
type Detection struct {
	Label      string
	Confidence float64
}

// ObjectClassifier is an optional object classifier.
type ObjectClassifier interface {
	Classify(frame *Frame) ([]Detection, error)
	Close() error
}

// HostProbe asks the host shell whether an inspection tool is open.
type HostProbe interface {
	InspectorOpen() (bool, error)
}

// UIEventKind tags host shell UI events.
type UIEventKind string

const (
	EventVisibilityHidden UIEventKind = "visibility-hidden"
	EventWindowBlur       UIEventKind = "window-blur"
	EventFullscreenExit   UIEventKind = "fullscreen-exit"
	EventCopy             UIEventKind = "copy"
	EventPaste            UIEventKind = "paste"
	EventContextMenu      UIEventKind = "context-menu"
	EventKeyCombo         UIEventKind = "key-combo"
	EventInputGrew        UIEventKind = "input-grew"
)

// UIEvent is one suppressed or observed UI interaction from the host
// shell.
type UIEvent struct {
	Kind  UIEventKind
	Combo string // for EventKeyCombo
	Delta int    // for EventInputGrew, characters added in one event
}

// EventSource streams UI events from the host shell.
type EventSource interface {
	Events() <-chan UIEvent
}

// Capabilities bundles whatever the host shell can provide. Nil fields
// disable the detectors that need them.
type Capabilities struct {
	Frames     FrameSource
	Audio      AudioSource
	Faces      FaceDetector
	Classifier *ClassifierLoader
	Probe      HostProbe
	Events     EventSource
}

// ClassifierLoader lazily initializes one process-wide object
// classifier. Concurrent callers during the load wait on the same
// in-flight attempt instead of triggering duplicate loads.
type ClassifierLoader struct {
	loadFn func(ctx context.Context) (ObjectClassifier, error)

	mu         sync.Mutex
	classifier ObjectClassifier
	inflight   chan struct{}
	loadErr    error
}

// NewClassifierLoader wraps a load function. The function runs at most
// once per successful load; a failed load is retried on the next Get.
func NewClassifierLoader(loadFn func(ctx context.Context) (ObjectClassifier, error)) *ClassifierLoader {
	return &ClassifierLoader{loadFn: loadFn}
}

// Get returns the classifier, loading it on first use.
func (l *ClassifierLoader) Get(ctx context.Context) (ObjectClassifier, error) {
	l.mu.Lock()
	if l.classifier != nil {
		c := l.classifier
		l.mu.Unlock()
		return c, nil
	}
	if l.inflight != nil {
		wait := l.inflight
		l.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		l.mu.Lock()
		c, err := l.classifier, l.loadErr
		l.mu.Unlock()
		if c == nil && err == nil {
			err = fmt.Errorf("classifier load did not complete")
		}
		return c, err
	}

	done := make(chan struct{})
	l.inflight = done
	l.mu.Unlock()

	c, err := l.loadFn(ctx)

	l.mu.Lock()
	l.classifier = c
	l.loadErr = err
	l.inflight = nil
	close(done)
	l.mu.Unlock()

	return c, err
}

// Teardown releases the loaded classifier.
func (l *ClassifierLoader) Teardown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.classifier != nil {
		l.classifier.Close()
		l.classifier = nil
	}
	l.loadErr = nil
}
