package controller

// NoticeKind grades a user-visible message.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeSuccess
	NoticeError
	// NoticeBlocking must be acknowledged before the user continues.
	NoticeBlocking
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeSuccess:
		return "success"
	case NoticeError:
		return "error"
	case NoticeBlocking:
		return "blocking"
	default:
		return "info"
	}
}

// Notice is a message for the user.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Notifier receives notices.
type Notifier interface {
	Notify(Notice)
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(Notice)

func (f NotifyFunc) Notify(n Notice) { f(n) }

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }
