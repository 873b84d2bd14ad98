package render

// Inline button action names. Arguments are ids, see chat.Action.
const (
	ActTaskAck         = "ack"              // task
	ActTaskComplete    = "complete_confirm" // task
	ActTaskCompleteYes = "complete"         // task
	ActTaskDetail      = "task_detail"      // task
	ActProofStart      = "proof_start"      // task
	ActProofSubmit     = "proof_submit"     // task
	ActProofCancel     = "proof_cancel"     // task

	ActShiftOpen        = "shift_open"
	ActShiftDealer      = "shift_dealer" // dealership
	ActShiftOpenCancel  = "shift_open_cancel"
	ActShiftClose       = "shift_close"         // shift
	ActShiftCloseNoPic  = "shift_close_nophoto" // shift
	ActShiftCloseCancel = "shift_close_cancel"

	ActReviewApprove    = "review_approve"     // response
	ActReviewReject     = "review_reject"      // response
	ActReviewApproveAll = "review_approve_all" // task
	ActReviewRejectAll  = "review_reject_all"  // task
	ActReviewDetail     = "review_individual"  // task
	ActRejectCancel     = "reject_cancel"

	ActDelegateStart  = "dlg_start"       // task
	ActDelegateUser   = "dlg_user"        // task, user
	ActDelegateSkip   = "dlg_skip"        // task, user
	ActDelegateCancel = "dlg_cancel_flow" // task
	ActDelegAccept    = "dlg_accept"      // delegation
	ActDelegReject    = "dlg_reject"      // delegation
	ActDelegRejectNo  = "dlg_reject_cancel"
	ActDelegWithdraw  = "dlg_cancel" // delegation
)
