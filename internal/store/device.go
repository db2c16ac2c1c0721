package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Device returns the stored device identity, generating and persisting one
// on first call. The identity survives logout so the server can correlate
// sessions from the same install.
func (db *DB) Device(name, deviceType string) (*Device, error) {
	var d Device
	err := db.QueryRow(`SELECT device_id, device_name, device_type FROM device WHERE id = 1`).
		Scan(&d.ID, &d.Name, &d.Type)
	if err == nil {
		return &d, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	d = Device{ID: uuid.NewString(), Name: name, Type: deviceType}
	_, err = db.Exec(`
		INSERT INTO device (id, device_id, device_name, device_type, created_at)
		VALUES (1, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Type, time.Now().UnixMilli())
	if err != nil {
		return nil, err
	}
	return &d, nil
}
