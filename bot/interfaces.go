package bot

import "context"

// Logger is the minimal logging abstraction used across modules.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// Config provides typed access to configuration values.
type Config interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetFloat64(key string) float64
	GetInt64Slice(key string) []int64
}

// WorkerPool limits concurrency for background tasks.
type WorkerPool interface {
	Submit(task func()) error
	SubmitWait(task func() error) error
	Shutdown(ctx context.Context) error
	Size() int
}

// UserStore answers authorization questions and persists allowed users.
type UserStore interface {
	Role(userID int64) Role
	IsAllowed(userID int64) bool
	IsAdmin(userID int64) bool
	Add(userID int64) (bool, error)
	Remove(userID int64) (bool, error)
	Allowed() []int64
	Admins() []int64
}
