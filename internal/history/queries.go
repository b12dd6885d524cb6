package history

const (
	insertRecord = `
		INSERT INTO print_history (ticket_id, kind, title, outcome, error_message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	getRecordByID = `
		SELECT id, ticket_id, kind, title, outcome, error_message, duration_ms, created_at
		FROM print_history WHERE id = ?
	`

	listRecords = `
		SELECT id, ticket_id, kind, title, outcome, error_message, duration_ms, created_at
		FROM print_history ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`

	countByOutcome = `
		SELECT outcome, COUNT(*) FROM print_history GROUP BY outcome
	`

	countToday = `
		SELECT COUNT(*) FROM print_history WHERE date(created_at) = date('now')
	`

	pruneBefore = `DELETE FROM print_history WHERE created_at < ?`

	getMeta = `SELECT value FROM meta WHERE key = ?`

	setMeta = `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
)
