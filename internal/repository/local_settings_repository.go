package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"techno-etl-service/internal/models"
)

// Device-local key-value layout. These strings are a compatibility
// surface; older deployments read the same keys.
const (
	KeyUnifiedSettings = "techno-etl-settings"
	KeyUnifiedMirror   = "techno-etl-unified-settings"
	KeyThemeSettings   = "techno-etl-theme-settings"
	KeyLastModified    = "settingsLastModified"
	KeyLanguage        = "preferred-language"

	userSettingsPrefix = "userSettings_"
)

// UnifiedMirror is the richer representation written alongside the
// unified snapshot.
type UnifiedMirror struct {
	Settings   *models.Settings  `json:"settings"`
	DeviceInfo models.DeviceInfo `json:"deviceInfo"`
	SavedAt    int64             `json:"savedAt"`
}

// LocalSettingsRepository persists snapshots to the device-scoped
// Badger store. Every write happens inside a single Badger update
// transaction, so a snapshot and its companion keys are either all
// visible or not at all.
type LocalSettingsRepository struct {
	db *badger.DB
}

func NewLocalSettingsRepository(db *badger.DB) *LocalSettingsRepository {
	return &LocalSettingsRepository{db: db}
}

// ReadUnified returns the last-known unified snapshot merged with
// defaults. A missing key or unparseable value yields the defaults.
func (r *LocalSettingsRepository) ReadUnified() *models.Settings {
	snap, _ := r.readSnapshot(KeyUnifiedSettings)
	return snap
}

// ReadUser returns the per-user snapshot merged with defaults. The
// second return reports whether a snapshot was actually stored, so the
// caller can tell a cached tier from plain defaults.
func (r *LocalSettingsRepository) ReadUser(uid string) (*models.Settings, bool) {
	return r.readSnapshot(userSettingsPrefix + uid)
}

func (r *LocalSettingsRepository) readSnapshot(key string) (*models.Settings, bool) {
	var raw []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			log.Printf("Warning: failed to read %q: %v", key, err)
		}
		return models.DefaultSettings(), false
	}

	snap, err := models.MergeJSON(raw)
	if err != nil {
		log.Printf("Warning: stored settings under %q are not valid JSON, falling back to defaults: %v", key, err)
		return models.DefaultSettings(), false
	}
	return snap, true
}

// WriteUnified stores the unified snapshot along with the mirror, the
// theme projection, the preferred language and the last-modified
// marker. Returns false when the write did not go through.
func (r *LocalSettingsRepository) WriteUnified(snap *models.Settings) bool {
	return r.writeSnapshot(KeyUnifiedSettings, snap)
}

// WriteUser stores the per-user snapshot; companion keys are updated
// the same way WriteUnified updates them.
func (r *LocalSettingsRepository) WriteUser(uid string, snap *models.Settings) bool {
	return r.writeSnapshot(userSettingsPrefix+uid, snap)
}

func (r *LocalSettingsRepository) writeSnapshot(key string, snap *models.Settings) bool {
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Printf("Warning: failed to serialize settings: %v", err)
		return false
	}

	mirror, err := json.Marshal(UnifiedMirror{
		Settings:   snap,
		DeviceInfo: models.CurrentDeviceInfo(),
		SavedAt:    time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("Warning: failed to serialize settings mirror: %v", err)
		return false
	}

	theme, err := json.Marshal(models.ThemeProjectionOf(snap))
	if err != nil {
		log.Printf("Warning: failed to serialize theme projection: %v", err)
		return false
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), payload); err != nil {
			return err
		}
		if err := txn.Set([]byte(KeyUnifiedMirror), mirror); err != nil {
			return err
		}
		if err := txn.Set([]byte(KeyThemeSettings), theme); err != nil {
			return err
		}
		if err := txn.Set([]byte(KeyLanguage), []byte(snap.Preferences.Language)); err != nil {
			return err
		}
		return txn.Set([]byte(KeyLastModified), []byte(strconv.FormatInt(snap.LastModified, 10)))
	})
	if err != nil {
		log.Printf("Warning: failed to write settings under %q: %v", key, err)
		return false
	}
	return true
}

// ReadLastModified returns the lastModified of the last successful
// local write, or 0 when nothing was written yet.
func (r *LocalSettingsRepository) ReadLastModified() int64 {
	var raw []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(KeyLastModified))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return 0
	}

	value, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		log.Printf("Warning: stored lastModified is not numeric: %q", raw)
		return 0
	}
	return value
}

// ReadPreferredLanguage returns the early-boot language tag, or empty.
func (r *LocalSettingsRepository) ReadPreferredLanguage() string {
	var raw []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(KeyLanguage))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return ""
	}
	return string(raw)
}

// ClearAll removes every known settings key, including all per-user
// snapshots.
func (r *LocalSettingsRepository) ClearAll() error {
	err := r.db.Update(func(txn *badger.Txn) error {
		for _, key := range []string{KeyUnifiedSettings, KeyUnifiedMirror, KeyThemeSettings, KeyLastModified, KeyLanguage} {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(userSettingsPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		var userKeys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			userKeys = append(userKeys, it.Item().KeyCopy(nil))
		}
		for _, key := range userKeys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear local settings: %w", err)
	}
	return nil
}
