package database

import (
	"sync"
)

// Journal backend names reported by BackendName.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMariaDB  = "mariadb"
)

var (
	providerMu     sync.RWMutex
	sqlJournal     func() Journal
	sqlBackendName string

	memoryOnce    sync.Once
	processMemory *MemoryJournal
)

// registerBackend installs the SQL journal constructor. Only one SQL
// backend is active; a nil constructor unregisters it.
func registerBackend(name string, journal func() Journal) {
	providerMu.Lock()
	defer providerMu.Unlock()
	if journal == nil {
		if sqlBackendName == name {
			sqlJournal, sqlBackendName = nil, ""
		}
		return
	}
	sqlJournal, sqlBackendName = journal, name
}

// RegisterPostgresBackend registers the PostgreSQL journal constructor.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(journal func() Journal) {
	registerBackend(BackendPostgres, journal)
}

// RegisterMariaDBBackend registers the MariaDB journal constructor.
func RegisterMariaDBBackend(journal func() Journal) {
	registerBackend(BackendMariaDB, journal)
}

// IsInitialized returns whether a SQL backend has been initialized.
func IsInitialized() bool {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return sqlJournal != nil
}

// BackendName names the journal GetJournal returns.
func BackendName() string {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if sqlJournal == nil {
		return BackendMemory
	}
	return sqlBackendName
}

// GetJournal returns the SQL journal when DATABASE_URL was configured,
// otherwise a process-wide in-memory journal.
func GetJournal() Journal {
	providerMu.RLock()
	ctor := sqlJournal
	providerMu.RUnlock()
	if ctor != nil {
		return ctor()
	}

	memoryOnce.Do(func() {
		processMemory = NewMemoryJournal(DefaultMemoryCapacity)
	})
	return processMemory
}
