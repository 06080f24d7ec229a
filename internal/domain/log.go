package domain

import "time"

// LogEntry is one line of node output as shown on the dashboard.
type LogEntry struct {
	ID        string    `json:"id"`
	NodeName  string    `json:"nodeName"`
	Level     LogLevel  `json:"level"`
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// LogQuery selects log entries, newest first.
type LogQuery struct {
	Limit int
}
