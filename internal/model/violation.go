package model

import "time"

// Violation type vocabulary. Closed but extensible: the store accepts
// any tag, these are the ones the stock detectors and the proctor
// warning path emit.
const (
	ViolationTabSwitch      = "tab-switch"
	ViolationWindowBlur     = "window-blur"
	ViolationFullscreenExit = "fullscreen-exit"
	ViolationCopyPaste      = "copy-paste"
	ViolationRightClick     = "right-click"
	ViolationRestrictedKey  = "restricted-key"
	ViolationPasteBurst     = "paste-burst"
	ViolationDarkFrame      = "dark-frame"
	ViolationFrozenFrame    = "frozen-frame"
	ViolationFaceAbsence    = "face-absence"
	ViolationMultipleFaces  = "multiple-faces"
	ViolationLookingDown    = "looking-down"
	ViolationLookingAway    = "looking-sideways"
	ViolationPhone          = "phone-detected"
	ViolationBook           = "book-detected"
	ViolationSecondDevice   = "device-detected"
	ViolationMultiplePeople = "multiple-people"
	ViolationAudio          = "background-audio"
	ViolationDevtools       = "devtools-open"
	ViolationProctorWarning = "proctor-warning"
)

// ViolationLog is one accepted violation. Rows are append-only: never
// updated or deleted, retained for review and appeal.
type ViolationLog struct {
	ID            string    `json:"id" bson:"_id,omitempty"`
	ExamID        string    `json:"examId" bson:"examId"`
	CandidateID   string    `json:"candidateId" bson:"candidateId"`
	CandidateName string    `json:"candidateName" bson:"candidateName"`
	Type          string    `json:"type" bson:"type"`
	Severity      Severity  `json:"severity" bson:"severity"`
	Description   string    `json:"description" bson:"description"`
	Snapshot      string    `json:"frameSnapshot,omitempty" bson:"frameSnapshot,omitempty"` // base64 JPEG
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
}
