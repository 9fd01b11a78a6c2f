package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RibkiAnas/resumaker/config"
	"github.com/RibkiAnas/resumaker/database"
	"github.com/RibkiAnas/resumaker/logger"

	"github.com/stretchr/testify/assert"
)

func TestGetLogs(t *testing.T) {
	service := ServerService{}

	logs := service.GetLogs("abc", "DEBUG")
	assert.Len(t, logs, 1)
	assert.Contains(t, logs[0], "invalid count")

	logs = service.GetLogs("0", "DEBUG")
	assert.Len(t, logs, 1)
	assert.Contains(t, logs[0], "invalid count")

	logger.Warning("maintenance log entry")
	logs = service.GetLogs("50", "DEBUG")
	assert.NotEmpty(t, logs)
	assert.Contains(t, logs[0], "maintenance log entry")
}

func TestDbBackupAndImport(t *testing.T) {
	t.Setenv("RESUMAKER_DB_FOLDER", t.TempDir())

	assert.NoError(t, database.InitDB(config.GetDBPath()))
	defer database.CloseDB()

	userService := UserService{}
	service := ServerService{}

	user, err := userService.CreateUser("kody@example.com", "kody", "Kody", "koalas-are-great")
	assert.NoError(t, err)

	backup, err := service.GetDb()
	assert.NoError(t, err)
	assert.NotEmpty(t, backup)

	// Restore the backup through the import path
	backupPath := filepath.Join(t.TempDir(), "backup.db")
	assert.NoError(t, os.WriteFile(backupPath, backup, 0o660))
	backupFile, err := os.Open(backupPath)
	assert.NoError(t, err)
	defer backupFile.Close()

	assert.NoError(t, service.ImportDB(backupFile))

	// The restored database still has the account
	loaded, err := userService.GetUser(user.ID)
	assert.NoError(t, err)
	assert.Equal(t, "kody", loaded.Username)

	// Garbage is rejected before anything is touched
	junkPath := filepath.Join(t.TempDir(), "junk.db")
	assert.NoError(t, os.WriteFile(junkPath, []byte("not a database"), 0o660))
	junkFile, err := os.Open(junkPath)
	assert.NoError(t, err)
	defer junkFile.Close()

	err = service.ImportDB(junkFile)
	assert.Error(t, err)

	loaded, err = userService.GetUser(user.ID)
	assert.NoError(t, err)
	assert.Equal(t, "kody", loaded.Username)
}
