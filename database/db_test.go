package database

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSQLiteDB(t *testing.T) {
	dbPath := "test.db"
	os.Remove(dbPath)
	assert.NoError(t, InitDB(dbPath))
	defer func() {
		CloseDB()
		os.Remove(dbPath)
	}()

	// Flush the WAL so the main file carries the full header
	assert.NoError(t, Checkpoint())

	file, err := os.Open(dbPath)
	assert.NoError(t, err)
	defer file.Close()

	ok, err := IsSQLiteDB(file)
	assert.NoError(t, err)
	assert.True(t, ok)

	notADb := bytes.NewReader([]byte("definitely not a database file"))
	ok, err = IsSQLiteDB(notADb)
	assert.NoError(t, err)
	assert.False(t, ok)
}
