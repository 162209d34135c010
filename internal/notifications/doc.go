// Package notifications delivers SignScribe events via ntfy.
//
// The ntfy service publishes password reset tokens, server errors and
// startup notices to the topic configured in config.toml. When no topic is
// configured NewService returns a no-op implementation, so callers never
// need to check whether notifications are enabled. The Service satisfies
// auth.Mailer, which lets the local auth provider hand reset tokens straight
// to it.
package notifications
