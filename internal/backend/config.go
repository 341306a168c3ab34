package backend

import (
	"fmt"

	"posreports/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		MainSheetURL:    appConfig.MainSheetURL,
		SalesSheetURL:   appConfig.SalesSheetURL,
		CredentialsJSON: appConfig.CredentialsJSON,

		DataDirectory: appConfig.MemoryDataDir,

		Snapshots:    SnapshotType(appConfig.SnapshotBackend),
		SnapshotDir:  appConfig.SnapshotDir,
		SQLiteDBPath: appConfig.SQLiteDBPath,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s (valid: %v)", c.Type, GetBackendTypes())
	}
	if !c.Snapshots.IsValid() {
		return fmt.Errorf("invalid snapshot backend: %s", c.Snapshots)
	}

	switch c.Snapshots {
	case FileSnapshots:
		if c.SnapshotDir == "" {
			return fmt.Errorf("snapshot directory is required for file snapshots")
		}
	case SQLiteSnapshots:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite snapshots")
		}
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SheetsBackend, MemoryBackend}
}
