package model

// Room event names.
const (
	EventStatus             = "status"
	EventProgress           = "progress"
	EventNewClip            = "new_clip"
	EventSystemMessageStart = "system_message_start"
	EventSystemMessage      = "system_message"
	EventSystemMessageEnd   = "system_message_end"
	EventSystemMessageError = "system_message_error"
)

// Progress event types.
const (
	ProgressTypeProgress = "progress"
	ProgressTypeError    = "error"
)

// StatusPayload is the payload of the status event.
type StatusPayload struct {
	Status SessionStatus `json:"status"`
}

// ProgressPayload is the payload of the progress event.
type ProgressPayload struct {
	Type       string `json:"type"`
	JobID      string `json:"jobId,omitempty"`
	Percentage int    `json:"percentage"`
	Message    string `json:"message,omitempty"`
	Kind       string `json:"kind,omitempty"`
}

// NewClipPayload is the payload of the new_clip event.
type NewClipPayload struct {
	VideoID     string `json:"video_id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// SystemMessagePayload is the payload of the system_message event.
type SystemMessagePayload struct {
	Token string `json:"token"`
}

// SystemMessageEndPayload is the payload of the system_message_end event.
type SystemMessageEndPayload struct {
	Answered bool `json:"answered"`
}

// SystemMessageErrorPayload is the payload of the system_message_error event.
type SystemMessageErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
