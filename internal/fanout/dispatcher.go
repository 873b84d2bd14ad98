package fanout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskmate/tmbot/internal/chat"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/store"
)

// Result summarises one fan-out pass.
type Result struct {
	Delivered  int
	Duplicates int
	Unresolved int
	Failed     int
}

// Dispatcher resolves an event's target users to chats and delivers it
// once per chat.
type Dispatcher struct {
	chats  *SnapshotCache
	notify notifier
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(chats *SnapshotCache, ledger store.DedupLedger, out chat.Messenger, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		chats:  chats,
		notify: notifier{ledger: ledger, out: out, logger: logger},
		logger: logger,
	}
}

// Process delivers ev. Failed sends are logged and left unmarked; an
// error is returned only when the session snapshot or the ledger cannot
// be read, in which case the event should be retried.
func (d *Dispatcher) Process(ctx context.Context, ev Event) (Result, error) {
	var res Result
	msg, ok := ev.Message()
	if !ok {
		d.logger.Debug("Event kind has no notification", "event", ev.Kind, "task_id", ev.Task.ID)
		return res, nil
	}
	category, key := ev.Dedup()
	logger := d.logger.With("event", ev.Kind, "task_id", ev.Task.ID, "category", category)

	for _, userID := range ev.UserIDs {
		chats, err := d.chats.Chats(ctx, userID)
		if err != nil {
			return res, err
		}
		if len(chats) == 0 {
			res.Unresolved++
			continue
		}
		for _, chatID := range chats {
			sent, err := d.notify.deliver(ctx, chatID, category, key, msg)
			switch {
			case err != nil:
				return res, err
			case sent == deliverDuplicate:
				res.Duplicates++
			case sent == deliverFailed:
				res.Failed++
			default:
				res.Delivered++
				logger.Debug("Notification delivered", "chat_id", chatID, "user_id", userID)
			}
		}
	}
	return res, nil
}

type deliverOutcome int

const (
	deliverSent deliverOutcome = iota
	deliverDuplicate
	deliverFailed
)

// notifier sends through the dedup ledger. It is shared by the push and
// pull paths.
type notifier struct {
	ledger store.DedupLedger
	out    chat.Messenger
	logger *slog.Logger
}

// deliver sends msg unless the ledger already has the key, and marks the
// key only after a successful send.
func (n notifier) deliver(ctx context.Context, chatID int64, category domain.Category, key string, msg chat.Message) (deliverOutcome, error) {
	seen, err := n.ledger.WasDelivered(ctx, chatID, category, key)
	if err != nil {
		return deliverFailed, fmt.Errorf("check ledger: %w", err)
	}
	if seen {
		return deliverDuplicate, nil
	}

	if _, err := n.out.Send(ctx, chatID, msg); err != nil {
		n.logger.Warn("Failed to deliver notification", "chat_id", chatID, "category", category, "key", key, "error", err)
		return deliverFailed, nil
	}
	if err := n.ledger.MarkDelivered(ctx, chatID, category, key); err != nil {
		n.logger.Error("Failed to mark notification delivered", "chat_id", chatID, "category", category, "key", key, "error", err)
	}
	return deliverSent, nil
}
