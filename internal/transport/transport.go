// Package transport defines the outbound messaging contract. The core
// speaks in OutboundMessage values; adapters (telegram) own the rendering of
// choices into platform keyboards and the actual delivery.
package transport

import "context"

// OutboundMessage is one reply to one chat. Exactly one of the content
// fields matters per use: plain text, text with semantic choices, or a photo
// by its transport file ID with a caption.
type OutboundMessage struct {
	Text string
	// Choices, when non-empty, are offered as buttons, one row per inner
	// slice. The chosen label comes back as ordinary text input.
	Choices [][]string
	// RemoveChoices clears any keyboard left by a previous message.
	RemoveChoices bool
	// PhotoFileID references a file already uploaded to the platform.
	PhotoFileID string
	Caption     string
}

// Text builds a plain text message.
func Text(text string) OutboundMessage {
	return OutboundMessage{Text: text, RemoveChoices: true}
}

// TextWithChoices builds a message that offers the given button rows.
func TextWithChoices(text string, choices ...[]string) OutboundMessage {
	return OutboundMessage{Text: text, Choices: choices}
}

// Photo builds a photo message referencing an already-uploaded file.
func Photo(fileID, caption string) OutboundMessage {
	return OutboundMessage{PhotoFileID: fileID, Caption: caption, RemoveChoices: true}
}

// Sender delivers one message to one chat. Implementations report a
// per-recipient error; callers decide whether that failure is isolated
// (broadcast) or surfaced (direct reply).
type Sender interface {
	Send(ctx context.Context, chatID int64, msg OutboundMessage) error
}
