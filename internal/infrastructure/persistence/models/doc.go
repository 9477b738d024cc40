// Package models contains the GORM models for the tables the engine owns.
// Orders, subscriptions and gateway records live upstream and are never stored here.
package models
