package capture

import "errors"

// UserError is a failure the kiosk shows to the person at the device. Code is
// stable for clients; the Error text is the user-facing message.
type UserError struct {
	Code    string
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

// Capability errors. None of them change the workflow state.
var (
	ErrCameraUnsupported      = &UserError{"camera_unsupported", "Camera access is not supported on this device."}
	ErrCameraPermissionDenied = &UserError{"camera_permission_denied", "Camera permission was denied. Allow camera access and try again."}
	ErrCameraNotFound         = &UserError{"camera_not_found", "No camera was found on this device."}
	ErrCameraBusy             = &UserError{"camera_busy", "The camera is already in use by another application."}
	ErrCameraUnavailable      = &UserError{"camera_unavailable", "The camera could not be started."}
)

// Validation errors. They block the action without touching state.
var (
	ErrFileTooLarge     = &UserError{"file_too_large", "The file is too large. The maximum size is 5 MB."}
	ErrNotAnImage       = &UserError{"not_an_image", "Please choose an image file."}
	ErrNoImage          = &UserError{"no_image", "Take or upload a photo before searching."}
	ErrSearchInProgress = &UserError{"search_in_progress", "A search is already running."}
)

// Sequencing errors.
var (
	ErrInvalidState     = &UserError{"invalid_state", "That action is not available right now."}
	ErrOperationPending = &UserError{"operation_pending", "Please wait for the current action to finish."}
	ErrClosed           = &UserError{"closed", "The photo search has been closed."}
)

// UserMessage returns the user-facing text for err, falling back to a generic
// message for errors that did not originate here.
func UserMessage(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return "Something went wrong. Please try again."
}

// Code returns the stable code for err, or "internal".
func Code(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Code
	}
	return "internal"
}

// classifyCameraError keeps known capability errors and folds everything else
// into ErrCameraUnavailable.
func classifyCameraError(err error) *UserError {
	for _, known := range []*UserError{ErrCameraUnsupported, ErrCameraPermissionDenied, ErrCameraNotFound, ErrCameraBusy} {
		if errors.Is(err, known) {
			return known
		}
	}
	return ErrCameraUnavailable
}
