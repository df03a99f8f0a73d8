package model

// ViolationType identifies the raw environment signal behind a violation.
type ViolationType string

const (
	ViolationWindowBlur     ViolationType = "window-blur"
	ViolationWindowHidden   ViolationType = "window-hidden"
	ViolationFocusRegain    ViolationType = "focus-regain"
	ViolationFullscreenExit ViolationType = "fullscreen-exit"
	ViolationDevtoolsOpen   ViolationType = "devtools-open"
	ViolationCopyAttempt    ViolationType = "copy-attempt"
	ViolationPasteAttempt   ViolationType = "paste-attempt"
)

// WarningMessage returns the candidate-facing text shown with a warn
// outcome for this violation type.
func (t ViolationType) WarningMessage() string {
	switch t {
	case ViolationWindowBlur, ViolationWindowHidden:
		return "Tab or window change detected. Please remain focused on the exam. Another violation will end the exam."
	case ViolationFocusRegain:
		return "Focus change detected. Please keep your attention on the exam. Another violation will end the exam."
	case ViolationFullscreenExit:
		return "Fullscreen exit detected. Please return to fullscreen and remain focused on the exam. Another violation will end the exam."
	case ViolationDevtoolsOpen:
		return "Developer tools shortcut detected. Please remain focused on the exam. Another violation will end the exam."
	case ViolationCopyAttempt, ViolationPasteAttempt:
		return "Clipboard use detected. Copying and pasting are not permitted during the exam. Another violation will end the exam."
	default:
		return "Policy violation detected. Please remain focused on the exam. Another violation will end the exam."
	}
}

// EventAction is the server's verdict on a registered violation event.
// The threshold behind it is server policy; the client never computes
// its own.
type EventAction string

const (
	ActionWarn      EventAction = "warn"
	ActionTerminate EventAction = "terminate"
)
