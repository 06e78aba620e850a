package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.example.com",
		Port:     5433,
		User:     "catalog",
		Password: "secret",
		Database: "catalogattr_prod",
		SSLMode:  "require",
	}

	want := "host=db.example.com port=5433 user=catalog password=secret dbname=catalogattr_prod sslmode=require"
	if got := cfg.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %v, want %v", got, want)
	}
}

func TestServerConfig_Address(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"0.0.0.0", 50051, "0.0.0.0:50051"},
		{"", 8080, ":8080"},
		{"localhost", 0, "localhost:0"},
	}

	for _, tt := range tests {
		s := ServerConfig{Host: tt.host, Port: tt.port}
		if got := s.Address(); got != tt.want {
			t.Errorf("Address() = %v, want %v", got, tt.want)
		}
	}
}

func TestCacheConfig_TTL(t *testing.T) {
	tests := []struct {
		minutes int
		want    time.Duration
	}{
		{0, 0},
		{1, time.Minute},
		{90, 90 * time.Minute},
	}

	for _, tt := range tests {
		c := CacheConfig{TTLMinutes: tt.minutes}
		if got := c.TTL(); got != tt.want {
			t.Errorf("TTL() with %d minutes = %v, want %v", tt.minutes, got, tt.want)
		}
	}
}

func TestInitConfig(t *testing.T) {
	tests := []struct {
		name       string
		env        string
		wantDBName string
	}{
		{name: "default dev environment", env: "", wantDBName: "catalogattr_dev"},
		{name: "explicit dev environment", env: "dev", wantDBName: "catalogattr_dev"},
		{name: "test environment", env: "test", wantDBName: "catalogattr_test"},
		{name: "prod environment", env: "prod", wantDBName: "catalogattr_prod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset viper for each test
			viper.Reset()
			defer viper.Reset()

			if err := InitConfig(tt.env); err != nil {
				t.Fatalf("InitConfig() error = %v", err)
			}

			if viper.GetString("SERVER_HOST") != "0.0.0.0" {
				t.Errorf("InitConfig() SERVER_HOST = %v, want 0.0.0.0", viper.GetString("SERVER_HOST"))
			}
			if viper.GetInt("SERVER_PORT") != 50051 {
				t.Errorf("InitConfig() SERVER_PORT = %v, want 50051", viper.GetInt("SERVER_PORT"))
			}
			if viper.GetString("DB_DRIVER") != DriverPostgres {
				t.Errorf("InitConfig() DB_DRIVER = %v, want postgres", viper.GetString("DB_DRIVER"))
			}
			if viper.GetString("DB_USER") != "catalogattr" {
				t.Errorf("InitConfig() DB_USER = %v, want catalogattr", viper.GetString("DB_USER"))
			}
			if viper.GetString("DB_NAME") != tt.wantDBName {
				t.Errorf("InitConfig() DB_NAME = %v, want %v", viper.GetString("DB_NAME"), tt.wantDBName)
			}
			if viper.GetInt64("DEFAULT_ENTITY") != 1 {
				t.Errorf("InitConfig() DEFAULT_ENTITY = %v, want 1", viper.GetInt64("DEFAULT_ENTITY"))
			}
		})
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		overrides   map[string]interface{}
		wantErrMsg  string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name:      "successful load with password",
			overrides: map[string]interface{}{"DB_PASSWORD": "testpassword"},
			validateCfg: func(t *testing.T, cfg *Config) {
				if cfg.Server.Address() != "0.0.0.0:50051" {
					t.Errorf("Load() Server.Address() = %v, want 0.0.0.0:50051", cfg.Server.Address())
				}
				if cfg.Database.Driver != DriverPostgres {
					t.Errorf("Load() Database.Driver = %v, want postgres", cfg.Database.Driver)
				}
				if cfg.Database.Port != 15432 {
					t.Errorf("Load() Database.Port = %v, want 15432", cfg.Database.Port)
				}
				if cfg.Database.Password != "testpassword" {
					t.Errorf("Load() Database.Password = %v, want testpassword", cfg.Database.Password)
				}
				if cfg.Cache.TTL() != 5*time.Minute {
					t.Errorf("Load() Cache.TTL() = %v, want 5m", cfg.Cache.TTL())
				}
				if cfg.Log.Level != "info" {
					t.Errorf("Load() Log.Level = %v, want info", cfg.Log.Level)
				}
				if cfg.Tenancy.DefaultEntity != 1 {
					t.Errorf("Load() Tenancy.DefaultEntity = %v, want 1", cfg.Tenancy.DefaultEntity)
				}
			},
		},
		{
			name:       "missing password",
			wantErrMsg: "DB_PASSWORD is required (set via environment variable or .env file)",
		},
		{
			name:      "sqlite does not need a password",
			overrides: map[string]interface{}{"DB_DRIVER": "sqlite", "SQLITE_PATH": "/tmp/attrs.db"},
			validateCfg: func(t *testing.T, cfg *Config) {
				if cfg.Database.Driver != DriverSQLite {
					t.Errorf("Load() Database.Driver = %v, want sqlite", cfg.Database.Driver)
				}
				if cfg.Database.SQLitePath != "/tmp/attrs.db" {
					t.Errorf("Load() Database.SQLitePath = %v, want /tmp/attrs.db", cfg.Database.SQLitePath)
				}
			},
		},
		{
			name:       "unsupported driver",
			overrides:  map[string]interface{}{"DB_DRIVER": "mysql"},
			wantErrMsg: `unsupported DB_DRIVER "mysql" (want postgres or sqlite)`,
		},
		{
			name:       "invalid default entity",
			overrides:  map[string]interface{}{"DB_PASSWORD": "x", "DEFAULT_ENTITY": 0},
			wantErrMsg: "DEFAULT_ENTITY must be positive, got 0",
		},
		{
			name: "custom server config",
			overrides: map[string]interface{}{
				"DB_PASSWORD": "pass123",
				"SERVER_HOST": "custom.host",
				"SERVER_PORT": 8080,
				"LOG_FILE":    "/var/log/catalogattr.log",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				if cfg.Server.Host != "custom.host" {
					t.Errorf("Load() Server.Host = %v, want custom.host", cfg.Server.Host)
				}
				if cfg.Server.Port != 8080 {
					t.Errorf("Load() Server.Port = %v, want 8080", cfg.Server.Port)
				}
				if cfg.Log.File != "/var/log/catalogattr.log" {
					t.Errorf("Load() Log.File = %v", cfg.Log.File)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_PASSWORD", "")
			t.Setenv("DB_DRIVER", "")
			viper.Reset()
			defer viper.Reset()

			if err := InitConfig("test"); err != nil {
				t.Fatalf("InitConfig() error = %v", err)
			}
			for k, v := range tt.overrides {
				viper.Set(k, v)
			}

			cfg, err := Load()
			if tt.wantErrMsg != "" {
				if err == nil {
					t.Fatalf("Load() expected error %q, got nil", tt.wantErrMsg)
				}
				if err.Error() != tt.wantErrMsg {
					t.Errorf("Load() error = %v, want %v", err.Error(), tt.wantErrMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}

			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestFindProjectRoot(t *testing.T) {
	// This test assumes we're running from within the project
	root, err := findProjectRoot()
	if err != nil {
		t.Errorf("findProjectRoot() error = %v, want nil", err)
		return
	}

	// Verify go.mod exists in the returned root
	goModPath := root + "/go.mod"
	if _, err := os.Stat(goModPath); os.IsNotExist(err) {
		t.Errorf("findProjectRoot() returned %v, but go.mod does not exist at %v", root, goModPath)
	}
}
