// Package chattest provides a recording chat.Messenger for tests.
package chattest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/taskmate/tmbot/internal/chat"
)

// Sent is one recorded outbound message.
type Sent struct {
	ChatID int64
	chat.Message
}

// Recorder records everything sent through it.
type Recorder struct {
	mu      sync.Mutex
	sent    []Sent
	answers []string
	deleted []int
	cleared []int
	nextID  int
	SendErr map[int64]error
	Files   map[string][]byte
}

var _ chat.Messenger = (*Recorder)(nil)

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		SendErr: make(map[int64]error),
		Files:   make(map[string][]byte),
	}
}

func (r *Recorder) Send(_ context.Context, chatID int64, msg chat.Message) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.SendErr[chatID]; err != nil {
		return 0, err
	}
	r.nextID++
	r.sent = append(r.sent, Sent{ChatID: chatID, Message: msg})
	return r.nextID, nil
}

func (r *Recorder) AnswerCallback(_ context.Context, _ string, text string, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, text)
	return nil
}

func (r *Recorder) ClearButtons(_ context.Context, _ int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, messageID)
	return nil
}

func (r *Recorder) Delete(_ context.Context, _ int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, messageID)
	return nil
}

func (r *Recorder) Download(_ context.Context, fileID string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.Files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	return data, nil
}

// Sent returns all recorded messages.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// To returns messages sent to chatID.
func (r *Recorder) To(chatID int64) []Sent {
	var out []Sent
	for _, s := range r.Sent() {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the most recent message to chatID.
func (r *Recorder) Last(chatID int64) (Sent, bool) {
	msgs := r.To(chatID)
	if len(msgs) == 0 {
		return Sent{}, false
	}
	return msgs[len(msgs)-1], true
}

// LastText returns the text of the most recent message to chatID.
func (r *Recorder) LastText(chatID int64) string {
	s, _ := r.Last(chatID)
	return s.Text
}

// Contains reports whether any message to chatID contains substr.
func (r *Recorder) Contains(chatID int64, substr string) bool {
	for _, s := range r.To(chatID) {
		if strings.Contains(s.Text, substr) {
			return true
		}
	}
	return false
}

// Answers returns callback answer texts.
func (r *Recorder) Answers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.answers...)
}

// Deleted returns ids of deleted messages.
func (r *Recorder) Deleted() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.deleted...)
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.answers = nil
	r.deleted = nil
	r.cleared = nil
}
