package synthgen

import "context"

type contextKey string

const taskContextKey contextKey = "task"

// ContextWithTask attaches the task being generated to ctx.
func ContextWithTask(ctx context.Context, task Task) context.Context {
	return context.WithValue(ctx, taskContextKey, task)
}

// TaskFromContext returns the task attached by the runner, if any.
func TaskFromContext(ctx context.Context) (Task, bool) {
	task, ok := ctx.Value(taskContextKey).(Task)
	return task, ok
}
