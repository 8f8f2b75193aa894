// Package models defines the records kept in the client tracking database.
package models
