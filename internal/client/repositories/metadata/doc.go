// Package metadata stores key/value settings of the client tracking database.
package metadata
