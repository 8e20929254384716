package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"proctorhub/internal/model"
)

// Agent schedules the detector set against the capabilities the host
// shell provides and forwards findings through the Reporter. Detectors
// run on independent timers; none waits on another.
type Agent struct {
	reporter  ReportSink
	caps      Capabilities
	detectors []Detector

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an agent with whichever detectors the capabilities allow.
// The native face detector, when present, replaces the skin-tone
// heuristic.
func New(reporter ReportSink, caps Capabilities) *Agent {
	a := &Agent{reporter: reporter, caps: caps}

	if caps.Frames != nil {
		a.detectors = append(a.detectors,
			&darkFrameDetector{frames: caps.Frames},
			&frozenFrameDetector{frames: caps.Frames},
		)
		if caps.Faces != nil {
			a.detectors = append(a.detectors, &faceCountDetector{frames: caps.Frames, faces: caps.Faces})
		} else {
			a.detectors = append(a.detectors, &faceHeuristicDetector{frames: caps.Frames})
		}
		if caps.Classifier != nil {
			a.detectors = append(a.detectors, &objectDetector{frames: caps.Frames, loader: caps.Classifier})
		}
	}
	if caps.Audio != nil {
		a.detectors = append(a.detectors, &audioDetector{audio: caps.Audio})
	}
	if caps.Probe != nil {
		a.detectors = append(a.detectors, &toolingDetector{probe: caps.Probe})
	}

	return a
}

// Start launches every detector on its own timer plus the UI event
// loop. Stop or context cancellation shuts them down.
func (a *Agent) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	for _, d := range a.detectors {
		a.wg.Add(1)
		go a.runDetector(ctx, d)
	}
	if a.caps.Events != nil {
		a.wg.Add(1)
		go a.runEventLoop(ctx)
	}
}

// Stop cancels all detector timers and waits for them to exit.
func (a *Agent) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.caps.Classifier != nil {
		a.caps.Classifier.Teardown()
	}
}

func (a *Agent) runDetector(ctx context.Context, d Detector) {
	defer a.wg.Done()

	ticker := time.NewTicker(d.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.checkOnce(ctx, d)
		}
	}
}

// checkOnce runs one detector cycle. Capability errors skip the cycle;
// a panicking detector must not take the others down.
func (a *Agent) checkOnce(ctx context.Context, d Detector) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[agent] detector %s panicked: %v", d.Name(), r)
		}
	}()

	findings, err := d.Check(ctx)
	if err != nil {
		return
	}
	for _, f := range findings {
		a.reporter.Report(f.Type, f.Severity, f.Description, f.Snapshot)
	}
}

func (a *Agent) runEventLoop(ctx context.Context) {
	defer a.wg.Done()

	events := a.caps.Events.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.handleEvent(ev)
		}
	}
}

// handleEvent maps a suppressed or observed UI interaction to its
// violation contract.
func (a *Agent) handleEvent(ev UIEvent) {
	switch ev.Kind {
	case EventVisibilityHidden:
		a.reporter.Report(model.ViolationTabSwitch, model.SeverityHigh, "candidate switched away from the exam tab", true)
	case EventWindowBlur:
		a.reporter.Report(model.ViolationWindowBlur, model.SeverityMedium, "exam window lost focus", true)
	case EventFullscreenExit:
		a.reporter.Report(model.ViolationFullscreenExit, model.SeverityMedium, "candidate exited fullscreen", false)
	case EventCopy, EventPaste:
		a.reporter.Report(model.ViolationCopyPaste, model.SeverityMedium, "clipboard use blocked", false)
	case EventContextMenu:
		a.reporter.Report(model.ViolationRightClick, model.SeverityLow, "context menu blocked", false)
	case EventKeyCombo:
		combo := strings.ToLower(ev.Combo)
		if restrictedCombos[combo] {
			a.reporter.Report(model.ViolationRestrictedKey, model.SeverityLow, fmt.Sprintf("restricted shortcut %s blocked", combo), false)
		}
	case EventInputGrew:
		if ev.Delta >= pasteBurstChars {
			a.reporter.Report(model.ViolationPasteBurst, model.SeverityMedium, fmt.Sprintf("input grew by %d characters in one event", ev.Delta), false)
		}
	}
}
