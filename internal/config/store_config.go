package config

const (
	StoreMemory    = "memory"
	StoreSQLite    = "sqlite3"
	StoreMySQL     = "mysql"
	StorePostgREST = "postgrest"
)

type StoreConfig interface {
	GetStoreDriver() string
	GetStoreDSN() string
	GetPostgRESTURL() string
	GetPostgRESTAPIKey() string
}

type Store struct {
	file fileValues
}

var _ StoreConfig = Store{}

func (s Store) GetStoreDriver() string {
	return s.file.get("STORE_DRIVER", StoreSQLite)
}

func (s Store) GetStoreDSN() string {
	return s.file.get("STORE_DSN", "file:todos.db?_foreign_keys=on")
}

func (s Store) GetPostgRESTURL() string {
	return s.file.get("POSTGREST_URL", "")
}

func (s Store) GetPostgRESTAPIKey() string {
	return s.file.get("POSTGREST_API_KEY", "")
}
