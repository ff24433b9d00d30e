package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Users   Users   `yaml:"users"`
	LDAP    LDAP    `yaml:"ldap"`
	Slurmdb Slurmdb `yaml:"slurmdb"`
	Server  Server  `yaml:"server"`
}

// Users configures how numeric job-owner uids are resolved to names.
type Users struct {
	// Path of the uid/name JSON document ({"alice": {"uid": 1001}, ...}).
	Path string `yaml:"path"`
	// LDAPFallback enables a uidNumber LDAP search for uids the document
	// does not know.
	LDAPFallback bool `yaml:"ldapFallback"`
}

// Server configures the optional HTTP serve mode.
type Server struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdownTimeout"`
}

type Slurmdb struct {
	ClusterName     string `yaml:"clusterName"`
	Host            string `yaml:"host"`
	Port            int    `yaml:"port" validate:"omitempty,gte=1,lte=65535"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	Charset         string `yaml:"charset"`
	ParseTime       bool   `yaml:"parseTime"`
	Loc             string `yaml:"loc"`
	TLS             string `yaml:"tls"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime string `yaml:"connMaxLifetime"`
}

type LDAP struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port" validate:"omitempty,gte=1,lte=65535"`
	UseTLS             bool   `yaml:"useTLS"`
	StartTLS           bool   `yaml:"startTLS"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	ServerName         string `yaml:"serverName"`
	RootCAFile         string `yaml:"rootCAFile"`
	ClientCertFile     string `yaml:"clientCertFile"`
	ClientKeyFile      string `yaml:"clientKeyFile"`
	BindDN             string `yaml:"bindDN"`
	BindPassword       string `yaml:"bindPassword"`
	BaseDN             string `yaml:"baseDN"`
	ConnectTimeout     string `yaml:"connectTimeout"`
	ReadTimeout        string `yaml:"readTimeout"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Users:  Users{Path: "/etc/fern/users.json"},
		Server: Server{Addr: ":8080", ShutdownTimeout: "10s"},
	}
}

// Load reads a YAML config file from the given path, fills unset fields from
// Default and validates the result. An empty path yields Default unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, err
		}
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
