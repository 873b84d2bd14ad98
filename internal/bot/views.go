package bot

import (
	"context"

	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/chat"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/render"
)

const listPageSize = 20

func (r *Router) showTasks(ctx context.Context, sess *domain.Session, all bool) error {
	filter := backend.TaskFilter{PerPage: listPageSize}
	title := "📋 Tasks"
	if !all {
		filter.AssignedTo = sess.UserID
		title = "📋 My tasks"
	}
	tasks, err := r.gw.Tasks(ctx, sess.Token, filter)
	if err != nil {
		return err
	}
	return r.sendTaskList(ctx, title, tasks)
}

func (r *Router) showOverdue(ctx context.Context, sess *domain.Session) error {
	tasks, err := r.gw.Tasks(ctx, sess.Token, backend.TaskFilter{Status: "overdue", PerPage: listPageSize})
	if err != nil {
		return err
	}
	return r.sendTaskList(ctx, "⏰ Overdue", tasks)
}

func (r *Router) sendTaskList(ctx context.Context, title string, tasks []domain.Task) error {
	if len(tasks) == 0 {
		return r.send(ctx, r.withMenu(ctx, chat.Text(render.NoTasks)))
	}
	return r.send(ctx, chat.Message{Text: render.TaskList(title, tasks), Inline: render.TaskListButtons(tasks)})
}

func (r *Router) showTask(ctx context.Context, sess *domain.Session, taskID int64) error {
	task, err := r.gw.Task(ctx, sess.Token, taskID)
	if err != nil {
		return err
	}
	msg := chat.Text(render.TaskCard(task))
	if sess.Can(domain.ActionUpdateTask) && task.AssigneeIDs()[sess.UserID] {
		msg.Inline = render.TaskActions(task)
	}
	return r.send(ctx, msg)
}

// showReviews sends one card per task awaiting review. A task with a
// single pending response gets per-response buttons, otherwise bulk ones.
func (r *Router) showReviews(ctx context.Context, sess *domain.Session) error {
	tasks, err := r.gw.Tasks(ctx, sess.Token, backend.TaskFilter{Status: domain.StatusPendingReview, PerPage: listPageSize})
	if err != nil {
		return err
	}
	sent := 0
	for i := range tasks {
		t := &tasks[i]
		pending := t.PendingResponses()
		if len(pending) == 0 {
			continue
		}
		kb := render.ReviewTaskActions(t.ID)
		if len(pending) == 1 {
			kb = render.ReviewActions(pending[0].ID)
		}
		if err := r.send(ctx, chat.Message{Text: render.ReviewCard(t, &pending[0]), Inline: kb}); err != nil {
			return err
		}
		sent++
	}
	if sent == 0 {
		return r.send(ctx, r.withMenu(ctx, chat.Text(render.ReviewNone)))
	}
	return nil
}

// showResponses lists every pending response of a task individually.
func (r *Router) showResponses(ctx context.Context, sess *domain.Session, taskID int64) error {
	task, err := r.gw.Task(ctx, sess.Token, taskID)
	if err != nil {
		return err
	}
	pending := task.PendingResponses()
	if len(pending) == 0 {
		return r.send(ctx, chat.Text(render.ReviewNone))
	}
	for i := range pending {
		msg := chat.Message{Text: render.ReviewCard(task, &pending[i]), Inline: render.ReviewActions(pending[i].ID)}
		if err := r.send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) showMyShift(ctx context.Context, sess *domain.Session) error {
	shift, err := r.gw.CurrentShift(ctx, sess.Token)
	if err != nil {
		return err
	}
	if shift == nil {
		return r.send(ctx, chat.Message{Text: render.ShiftNone, Inline: render.ShiftOpenOffer()})
	}
	return r.send(ctx, chat.Message{Text: render.ShiftCard(shift), Inline: render.ShiftCloseOffer(shift.ID)})
}

func (r *Router) showShifts(ctx context.Context, sess *domain.Session) error {
	shifts, err := r.gw.Shifts(ctx, sess.Token, backend.ShiftFilter{PerPage: listPageSize})
	if err != nil {
		return err
	}
	return r.send(ctx, r.withMenu(ctx, chat.Text(render.ShiftList(shifts))))
}

// showDelegations lists pending delegations with buttons for the side the
// user is on.
func (r *Router) showDelegations(ctx context.Context, sess *domain.Session) error {
	if !sess.Can(domain.ActionDelegate) && !sess.Can(domain.ActionRespondDelegate) {
		return r.send(ctx, chat.Text(render.Forbidden))
	}
	ds, err := r.gw.Delegations(ctx, sess.Token, backend.DelegationFilter{Status: domain.DelegationPending, PerPage: listPageSize})
	if err != nil {
		return err
	}
	if len(ds) == 0 {
		return r.send(ctx, r.withMenu(ctx, chat.Text(render.NoDelegations)))
	}
	for i := range ds {
		d := &ds[i]
		msg := chat.Text(render.DelegationCard(d))
		switch {
		case d.ToUser != nil && d.ToUser.ID == sess.UserID:
			msg.Inline = render.DelegationActions(d.ID)
		case d.FromUser != nil && d.FromUser.ID == sess.UserID:
			msg.Inline = render.DelegationWithdraw(d.ID)
		}
		if err := r.send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) showDashboard(ctx context.Context, sess *domain.Session) error {
	d, err := r.gw.Dashboard(ctx, sess.Token)
	if err != nil {
		return err
	}
	return r.send(ctx, r.withMenu(ctx, chat.Text(render.Dashboard(d))))
}
