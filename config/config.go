package config

// Log represents logger specific options
type Log struct {
	Level string `json:"level" env:"LOG_LEVEL"`

	// Mode is one of json, text or test
	Mode string `json:"mode" env:"LOG_MODE"`
}

// Server represents http server settings
type Server struct {
	Port int `json:"port" env:"PORT"`
}

// Storage represents storage settings.
// Driver is one of sqlite3, postgres or bolt
type Storage struct {
	Driver string `json:"driver" env:"STORAGE_DRIVER"`
	DSN    string `json:"dsn" env:"STORAGE_DSN"`
}

// Accounts represents account related settings
type Accounts struct {
	// NumberMaxAttempts limits draws per account number allocation, 0 means no limit
	NumberMaxAttempts uint64 `json:"numberMaxAttempts" env:"ACCOUNTS_NUMBER_MAX_ATTEMPTS"`
}

// Config is a toplevel config structure
type Config struct {
	Log      Log      `json:"log"`
	Server   Server   `json:"server"`
	Storage  Storage  `json:"storage"`
	Accounts Accounts `json:"accounts"`
}
