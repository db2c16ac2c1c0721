package store

import (
	"database/sql"
	"time"
)

// SaveCredentials persists the token pair and user blob, replacing any
// previous row.
func (db *DB) SaveCredentials(c *Credentials) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO credentials (id, access_token, refresh_token, user_json, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			user_json = excluded.user_json,
			updated_at = excluded.updated_at`,
		c.AccessToken, c.RefreshToken, c.UserJSON, now)
	return err
}

// SaveTokens replaces only the token pair, keeping the cached user blob.
// Used by the refresh path.
func (db *DB) SaveTokens(accessToken, refreshToken string) error {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		UPDATE credentials SET access_token = ?, refresh_token = ?, updated_at = ?
		WHERE id = 1`,
		accessToken, refreshToken, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return db.SaveCredentials(&Credentials{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
		})
	}
	return nil
}

// Credentials returns the stored token pair, or nil when logged out.
func (db *DB) Credentials() (*Credentials, error) {
	var c Credentials
	err := db.QueryRow(`
		SELECT access_token, refresh_token, user_json FROM credentials WHERE id = 1`).
		Scan(&c.AccessToken, &c.RefreshToken, &c.UserJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ClearCredentials destroys the token pair and user blob. Called on logout
// and on irrecoverable refresh failure.
func (db *DB) ClearCredentials() error {
	_, err := db.Exec(`DELETE FROM credentials WHERE id = 1`)
	return err
}
