package domain

// NoticeLevel is the severity of a user-facing notification.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a toast shown to the shopper.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}
