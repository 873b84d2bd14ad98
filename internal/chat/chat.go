// Package chat defines the platform-neutral messaging surface the bot is
// written against.
package chat

import "context"

// Messenger sends messages and fetches uploaded files.
type Messenger interface {
	// Send delivers msg to chatID and returns the platform message id.
	Send(ctx context.Context, chatID int64, msg Message) (int, error)
	// AnswerCallback acknowledges a button tap, optionally with a toast.
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	// ClearButtons removes the inline keyboard from a sent message.
	ClearButtons(ctx context.Context, chatID int64, messageID int) error
	// Delete removes a message, used for messages carrying credentials.
	Delete(ctx context.Context, chatID int64, messageID int) error
	// Download returns the content of an uploaded file.
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// Button is an inline button carrying an encoded Action.
type Button struct {
	Text string
	Data string
}

// Keyboard is rows of inline buttons.
type Keyboard [][]Button

// Message is an outbound message. At most one of Inline and Menu is used;
// RemoveMenu hides a previously shown reply keyboard.
type Message struct {
	Text       string
	Photo      *Photo
	Inline     Keyboard
	Menu       [][]string
	RemoveMenu bool
}

// Photo is an image sent either by URL or as bytes.
type Photo struct {
	URL  string
	Name string
	Data []byte
}

// Text is a convenience constructor.
func Text(s string) Message {
	return Message{Text: s}
}

// AttachmentKind distinguishes inbound media.
type AttachmentKind string

const (
	AttachmentPhoto    AttachmentKind = "photo"
	AttachmentDocument AttachmentKind = "document"
	AttachmentVideo    AttachmentKind = "video"
)

// Attachment is a file the user sent.
type Attachment struct {
	Kind     AttachmentKind
	FileID   string
	FileName string
	MIMEType string
	Size     int64
}

// Callback is a button tap.
type Callback struct {
	ID        string
	Data      string
	MessageID int
}

// Update is one inbound event from a chat.
type Update struct {
	ChatID     int64
	MessageID  int
	Text       string
	Attachment *Attachment
	Callback   *Callback
}

// Command splits "/cmd@bot arg1 arg2" into its name and arguments. ok is
// false for text that is not a command.
func (u Update) Command() (name string, args []string, ok bool) {
	if len(u.Text) < 2 || u.Text[0] != '/' {
		return "", nil, false
	}
	fields := splitFields(u.Text)
	name = fields[0][1:]
	for i := 0; i < len(name); i++ {
		if name[i] == '@' {
			name = name[:i]
			break
		}
	}
	return name, fields[1:], true
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i := 0; i < len(s); i++ {
		space := s[i] == ' ' || s[i] == '\n' || s[i] == '\t'
		if space && start >= 0 {
			out = append(out, s[start:i])
			start = -1
		} else if !space && start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}
