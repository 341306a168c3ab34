package storage

const (
	selectSnapshot = `
SELECT captured_at, rows_json
FROM snapshots
WHERE sheet_type = ?`

	// The WHERE clause on the upsert keeps an older capture from replacing a
	// newer one; zero affected rows means the write was stale.
	upsertSnapshot = `
INSERT INTO snapshots (sheet_type, captured_at, row_count, rows_json)
VALUES (?, ?, ?, ?)
ON CONFLICT (sheet_type) DO UPDATE SET
    captured_at = excluded.captured_at,
    row_count   = excluded.row_count,
    rows_json   = excluded.rows_json
WHERE excluded.captured_at > snapshots.captured_at`
)
