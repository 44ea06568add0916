package types

import "time"

// Finding is a single lint observation against one manifest revision.
type Finding struct {
	Code     LintCode
	Severity Severity
	Revision string
	Message  string
}

// Revision is a manifest placed in release order.
type Revision struct {
	Label    string
	Version  string
	Manifest Manifest
}

// HistoryEntry is one row of the install ledger.
type HistoryEntry struct {
	ID          int64
	ReceiptID   string
	Name        string
	Version     string
	Prefix      string
	SHA256      string
	Status      InstallStatus
	Error       string
	CompletedAt time.Time
}
