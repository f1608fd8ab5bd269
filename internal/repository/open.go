package repository

import "fmt"

// StoreOptions selects and configures a RecordStore backend.
type StoreOptions struct {
	Type        string // sqlite, postgres, or mysql
	Path        string // sqlite only
	PostgresDSN string
	MySQL       MySQLConfig
}

// Open connects to the configured backend.
func Open(opts StoreOptions) (*SQLStore, error) {
	switch opts.Type {
	case "postgres", "postgresql":
		return NewPostgresStore(opts.PostgresDSN)
	case "mysql":
		return NewMySQLStore(opts.MySQL)
	case "", "sqlite":
		return NewSQLiteStore(opts.Path)
	default:
		return nil, fmt.Errorf("unknown store type %q", opts.Type)
	}
}
