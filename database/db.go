package database

import (
	"bytes"
	"io"
	"io/fs"
	"log"
	"os"
	"path"

	"github.com/RibkiAnas/resumaker/config"
	"github.com/RibkiAnas/resumaker/database/model"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

func initModels() error {
	models := []any{
		&model.User{},
		&model.Password{},
		&model.Session{},
		&model.Verification{},
		&model.Connection{},
		&model.Role{},
		&model.Permission{},
		&model.UserImage{},
		&model.Setting{},
		&model.Resume{},
	}
	for _, model := range models {
		if err := db.AutoMigrate(model); err != nil {
			log.Printf("Error auto migrating model: %v", err)
			return err
		}
	}
	return nil
}

// initRoles seeds the permission matrix and the two built-in roles.
// The "user" role gets own-access to everything, "admin" gets any-access.
func initRoles() error {
	empty, err := isTableEmpty("roles")
	if err != nil {
		log.Printf("Error checking if roles table is empty: %v", err)
		return err
	}
	if !empty {
		return nil
	}

	actions := []string{"create", "read", "update", "delete"}
	entities := []string{"user", "resume"}
	accesses := []string{"own", "any"}

	ownPerms := make([]model.Permission, 0, len(actions)*len(entities))
	anyPerms := make([]model.Permission, 0, len(actions)*len(entities))
	for _, entity := range entities {
		for _, action := range actions {
			for _, access := range accesses {
				perm := model.Permission{
					ID:     uuid.NewString(),
					Action: action,
					Entity: entity,
					Access: access,
				}
				if err := db.Create(&perm).Error; err != nil {
					return err
				}
				if access == "own" {
					ownPerms = append(ownPerms, perm)
				} else {
					anyPerms = append(anyPerms, perm)
				}
			}
		}
	}

	userRole := model.Role{
		ID:          uuid.NewString(),
		Name:        "user",
		Permissions: ownPerms,
	}
	if err := db.Create(&userRole).Error; err != nil {
		return err
	}

	adminRole := model.Role{
		ID:          uuid.NewString(),
		Name:        "admin",
		Permissions: anyPerms,
	}
	return db.Create(&adminRole).Error
}

func isTableEmpty(tableName string) (bool, error) {
	var count int64
	err := db.Table(tableName).Count(&count).Error
	return count == 0, err
}

func InitDB(dbPath string) error {
	dir := path.Dir(dbPath)
	err := os.MkdirAll(dir, fs.ModePerm)
	if err != nil {
		return err
	}

	var gormLogger logger.Interface

	if config.IsDebug() {
		gormLogger = logger.Default
	} else {
		gormLogger = logger.Discard
	}

	c := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}

	dsn := dbPath + "?cache=shared&_journal_mode=WAL&_synchronous=NORMAL"
	db, err = gorm.Open(sqlite.Open(dsn), c)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	_, err = sqlDB.Exec("PRAGMA cache_size = -64000;")
	if err != nil {
		return err
	}
	_, err = sqlDB.Exec("PRAGMA temp_store = MEMORY;")
	if err != nil {
		return err
	}
	_, err = sqlDB.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		return err
	}

	if err := initModels(); err != nil {
		return err
	}
	return initRoles()
}

func CloseDB() error {
	if db != nil {
		if err := Checkpoint(); err != nil {
			log.Printf("error executing checkpoint: %v", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

func GetDB() *gorm.DB {
	return db
}

func IsNotFound(err error) bool {
	return err == gorm.ErrRecordNotFound
}

func IsSQLiteDB(file io.ReaderAt) (bool, error) {
	signature := []byte("SQLite format 3\x00")
	buf := make([]byte, len(signature))
	_, err := file.ReadAt(buf, 0)
	if err != nil {
		return false, err
	}
	return bytes.Equal(buf, signature), nil
}

func Checkpoint() error {
	return db.Exec("PRAGMA wal_checkpoint;").Error
}
