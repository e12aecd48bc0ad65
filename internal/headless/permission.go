package headless

import (
	"github.com/codeturn-ai/opencode/internal/event"
	"github.com/codeturn-ai/opencode/internal/permission"
)

// autoApprover answers every permission request with "always" for the
// duration of a run. Headless runs have nobody to ask; --auto-approve is
// the user's standing answer.
type autoApprover struct {
	unsubscribe func()
}

func startAutoApprover(checker *permission.Checker) *autoApprover {
	a := &autoApprover{}
	a.unsubscribe = event.Subscribe(event.PermissionAsked, func(e event.Event) {
		if data, ok := e.Data.(event.PermissionAskedData); ok {
			checker.Respond(data.RequestID, "always")
		}
	})
	return a
}

func (a *autoApprover) stop() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}
