package timeline

// Schema creates the event journal.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT,
	trace_id TEXT,
	timestamp DATETIME NOT NULL,
	kind TEXT NOT NULL,
	agent TEXT,
	channel TEXT,
	summary TEXT,
	metadata TEXT DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_agent ON events(agent);
`
