package cmd

import (
	"github.com/guest-quantum/guestctl/pkg/guestctl/auth"
	"github.com/guest-quantum/guestctl/pkg/guestctl/client"
)

// ownedTasks keeps the tasks submitted by the token's subject. Tasks are returned
// unfiltered when the token carries no readable sub claim.
func ownedTasks(rt *runtimeState, token string, tasks []client.Task) []client.Task {
	subject, err := auth.SubjectFromToken(token)
	if err != nil {
		rt.Logger().Warnw("Cannot determine user from token; showing all tasks", "error", err)
		return tasks
	}
	owned := make([]client.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.UserID == subject {
			owned = append(owned, task)
		}
	}
	return owned
}
