package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"strconv"

	"github.com/RibkiAnas/resumaker/config"
	"github.com/RibkiAnas/resumaker/database"
	"github.com/RibkiAnas/resumaker/logger"
	"github.com/RibkiAnas/resumaker/util/common"
)

// ServerService covers admin maintenance: log inspection and database
// backup/restore.
type ServerService struct{}

// GetLogs returns up to count recent log lines at or above the level.
func (s *ServerService) GetLogs(count string, level string) []string {
	c, err := strconv.Atoi(count)
	if err != nil || c < 1 || c > 10000 {
		return []string{"invalid count, must be a number between 1 and 10000"}
	}
	return logger.GetLogs(c, level)
}

// GetDb checkpoints the WAL and returns the database file contents.
func (s *ServerService) GetDb() ([]byte, error) {
	if err := database.Checkpoint(); err != nil {
		return nil, err
	}

	file, err := os.Open(config.GetDBPath())
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

// ImportDB replaces the live database with an uploaded backup. The
// current file is kept as a fallback until the new one opens cleanly.
func (s *ServerService) ImportDB(file multipart.File) error {
	ok, err := database.IsSQLiteDB(file)
	if err != nil {
		return common.NewErrorf("error checking db file format: %v", err)
	}
	if !ok {
		return common.NewError("invalid db file format")
	}
	if _, err := file.Seek(0, 0); err != nil {
		return common.NewErrorf("error resetting file reader: %v", err)
	}

	dbPath := config.GetDBPath()
	tempPath := fmt.Sprintf("%s.temp", dbPath)
	fallbackPath := fmt.Sprintf("%s.backup", dbPath)

	tempFile, err := os.Create(tempPath)
	if err != nil {
		return common.NewErrorf("error creating temporary db file: %v", err)
	}
	defer func() {
		if _, err := os.Stat(tempPath); err == nil {
			if rerr := os.Remove(tempPath); rerr != nil {
				logger.Warningf("failed to remove temp db file: %v", rerr)
			}
		}
	}()

	if _, err = io.Copy(tempFile, file); err != nil {
		tempFile.Close()
		return common.NewErrorf("error saving db: %v", err)
	}
	if err = tempFile.Close(); err != nil {
		return common.NewErrorf("error closing temporary db file: %v", err)
	}

	// Release file locks before swapping the files
	if err := database.CloseDB(); err != nil {
		logger.Warningf("failed to close db before import: %v", err)
	}

	if err = os.Rename(dbPath, fallbackPath); err != nil {
		return common.NewErrorf("error backing up current db file: %v", err)
	}
	if err = os.Rename(tempPath, dbPath); err != nil {
		_ = os.Rename(fallbackPath, dbPath)
		return common.NewErrorf("error replacing db file: %v", err)
	}

	if err = database.InitDB(dbPath); err != nil {
		// Put the old database back and reopen it
		_ = os.Remove(dbPath)
		_ = os.Rename(fallbackPath, dbPath)
		if initErr := database.InitDB(dbPath); initErr != nil {
			return common.NewErrorf("error restoring db after failed import: %v", initErr)
		}
		return common.NewErrorf("error opening imported db: %v", err)
	}

	if rerr := os.Remove(fallbackPath); rerr != nil {
		logger.Warningf("failed to remove fallback db file: %v", rerr)
	}
	return nil
}
