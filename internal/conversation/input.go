package conversation

import "github.com/heartpipes/clubbot/internal/namefold"

// Kind discriminates inbound input.
type Kind int

const (
	KindText Kind = iota
	KindCommand
	KindPhoto
)

// Input is one raw user update as forwarded by the presentation layer.
// Button taps arrive as plain text carrying the button label.
type Input struct {
	Kind        Kind
	Command     string // command name without the slash, for KindCommand
	Text        string // message text, or command arguments for KindCommand
	PhotoFileID string // transport file ID of the largest photo size
	Caption     string
	FirstName   string // sender's display name from the platform
}

// Cancel sentinels. The /cancel command and the keyboard button both abort
// the active flow from any step.
const (
	cancelCommand = "cancel"
	cancelButton  = "Отмена"
)

func (in Input) isCancel() bool {
	if in.Kind == KindCommand && in.Command == cancelCommand {
		return true
	}
	return in.Kind == KindText && namefold.Equal(in.Text, cancelButton)
}

// isReserved reports input that must never be accepted as free text, like a
// stray command or a cancel label that slipped past the sentinel check.
func (in Input) isReserved() bool {
	return in.Kind != KindText || in.Text == "" || in.Text[0] == '/'
}
