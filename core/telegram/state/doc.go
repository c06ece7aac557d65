// Package state keeps short-lived per-user session data that does not
// belong in the database, such as values collected between two prompts.
package state
