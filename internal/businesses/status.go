package businesses

import (
	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
)

// ViewState is the logical state rendered on the owner's status page.
type ViewState string

const (
	StatePending    ViewState = "pending"
	StateActive     ViewState = "active"
	StateRejected   ViewState = "rejected"
	StateNoBusiness ViewState = "no_business"
	StateError      ViewState = "error"
)

// Action is the single call to action shown for a state.
type Action struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// StatusView is the complete status page payload.
type StatusView struct {
	State           ViewState    `json:"state"`
	Title           string       `json:"title"`
	Message         string       `json:"message"`
	Action          *Action      `json:"action,omitempty"`
	RejectionReason *string      `json:"rejection_reason,omitempty"`
	Business        *BusinessDTO `json:"business,omitempty"`
}

type stateCopy struct {
	title   string
	message string
	action  *Action
}

var statusCopy = map[ViewState]stateCopy{
	StatePending: {
		title:   "Your business is under review",
		message: "Our team is reviewing your listing. We'll notify you once a decision has been made.",
	},
	StateActive: {
		title:   "Your business is live",
		message: "Your listing is approved and visible in the directory.",
		action:  &Action{Label: "Manage business", Href: "/dashboard/business"},
	},
	StateRejected: {
		title:   "Your business needs changes",
		message: "Your listing was not approved. Review the feedback below and resubmit.",
		action:  &Action{Label: "Update and resubmit", Href: "/business/register"},
	},
	StateNoBusiness: {
		title:   "List your business",
		message: "You haven't registered a business yet.",
		action:  &Action{Label: "Register your business", Href: "/business/register"},
	},
	StateError: {
		title:   "We couldn't load your business",
		message: "Something went wrong while loading your business status.",
		action:  &Action{Label: "Try again", Href: "/business/status"},
	},
}

func viewFor(state ViewState) StatusView {
	c := statusCopy[state]
	view := StatusView{State: state, Title: c.title, Message: c.message}
	if c.action != nil {
		action := *c.action
		view.Action = &action
	}
	return view
}

// BuildStatusView maps the owner's business (nil when none exists) to its view.
func BuildStatusView(business *models.Business) StatusView {
	if business == nil {
		return viewFor(StateNoBusiness)
	}

	var view StatusView
	switch business.Status {
	case enums.BusinessStatusActive:
		view = viewFor(StateActive)
	case enums.BusinessStatusRejected:
		view = viewFor(StateRejected)
		if business.RejectionReason != nil && *business.RejectionReason != "" {
			reason := *business.RejectionReason
			view.RejectionReason = &reason
		}
	default:
		view = viewFor(StatePending)
	}
	view.Business = FromModel(business)
	return view
}

// ErrorView is the view returned when the business could not be fetched.
func ErrorView() StatusView {
	return viewFor(StateError)
}
