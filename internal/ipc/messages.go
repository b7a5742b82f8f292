package ipc

// Command is a message from the UI process. Op selects the action; most
// commands address one extension by id.
type Command struct {
	Op          string `json:"op"`
	ExtensionID string `json:"extension_id,omitempty"`
}

// Command ops accepted from the UI.
const (
	OpInstall    = "install"
	OpRemove     = "remove"
	OpEnable     = "enable"
	OpDisable    = "disable"
	OpPopupShown = "popup_shown"
)
