package service

import (
	"github.com/rs/zerolog"
)

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient, dismissible message for the user.
type Notice struct {
	Kind    NoticeKind
	Title   string
	Message string
}

// Notifier receives notices produced at operation boundaries.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

type logNotifier struct {
	logger *zerolog.Logger
}

// LogNotifier writes notices to the logger. Used when no UI is attached.
func LogNotifier(logger *zerolog.Logger) Notifier {
	return logNotifier{logger: logger}
}

func (l logNotifier) Notify(n Notice) {
	ev := l.logger.Info()
	if n.Kind == NoticeError {
		ev = l.logger.Warn()
	}
	ev.Str("title", n.Title).Msg(n.Message)
}

func errorNotice(message string) Notice {
	return Notice{Kind: NoticeError, Title: "Error", Message: message}
}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return NotifierFunc(func(Notice) {})
	}
	return n
}
