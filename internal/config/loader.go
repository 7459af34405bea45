package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load builds a Config from the process environment, fills in tag
// defaults and validates the result.
func Load() (*Config, error) {
	return loadFrom(os.Getenv)
}

// MustLoad is Load for main packages; it panics on a bad environment.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

func loadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	for _, f := range envFields(reflect.ValueOf(cfg).Elem()) {
		raw := f.lookup(getenv)
		if raw == "" {
			continue
		}
		if err := decode(f.dst, raw); err != nil {
			return nil, fmt.Errorf("config load: %s=%q: %w", f.name, raw, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envField is one settable leaf of Config bound to an environment variable.
type envField struct {
	name string
	alt  string
	def  string
	dst  reflect.Value
}

// lookup returns the primary variable, the alternate, or the default.
func (f envField) lookup(getenv func(string) string) string {
	if v := getenv(f.name); v != "" {
		return v
	}
	if f.alt != "" {
		if v := getenv(f.alt); v != "" {
			return v
		}
	}
	return f.def
}

// envFields flattens the nested section structs into their tagged fields.
func envFields(v reflect.Value) []envField {
	var out []envField
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			out = append(out, envFields(fv)...)
			continue
		}
		if name := sf.Tag.Get("env"); name != "" {
			out = append(out, envField{name: name, alt: sf.Tag.Get("envAlt"), def: sf.Tag.Get("default"), dst: fv})
		}
	}
	return out
}

var durationType = reflect.TypeOf(time.Duration(0))

// decode parses raw into dst according to dst's type.
func decode(dst reflect.Value, raw string) error {
	if dst.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		dst.SetInt(int64(d))
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		dst.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case reflect.Slice:
		if dst.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", dst.Type().Elem().Kind())
		}
		var list []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				list = append(list, part)
			}
		}
		dst.Set(reflect.ValueOf(list))
	default:
		return fmt.Errorf("unsupported field type %s", dst.Kind())
	}
	return nil
}

// problems collects validation failures so they are reported together.
type problems []string

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var p problems

	p.check(!c.NeedsDatabase() || c.Database.URL != "",
		"DATABASE_URL is required when STORAGE_BACKEND or IMPORT_EXECUTOR is postgres")
	p.check(c.Database.MaxConns >= c.Database.MinConns,
		"DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
	p.check(c.Database.MaxConns > 0, "DB_MAX_CONNS must be positive")
	p.check(c.Database.MinConns >= 0, "DB_MIN_CONNS must be non-negative")

	p.check(c.Server.Port > 0 && c.Server.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	p.check(c.Server.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")

	p.check(c.Import.MaxFileSize > 0, "IMPORT_MAX_FILE_SIZE must be positive")
	p.check(c.Import.MaxConcurrent > 0, "IMPORT_MAX_CONCURRENT must be positive")
	p.check(c.Import.MaxWaitTime > 0, "IMPORT_MAX_WAIT_TIME must be positive")
	p.check(c.Import.CommandTimeout > 0, "IMPORT_COMMAND_TIMEOUT must be positive")
	p.check(oneOf(c.Import.Executor, "postgres", "dryrun"),
		"IMPORT_EXECUTOR (%q) must be one of: postgres, dryrun", c.Import.Executor)

	p.check(oneOf(c.Storage.Backend, "postgres", "gcs", "memory"),
		"STORAGE_BACKEND (%q) must be one of: postgres, gcs, memory", c.Storage.Backend)
	p.check(c.Storage.Backend != "gcs" || c.Storage.Bucket != "",
		"GCS_BUCKET is required when STORAGE_BACKEND is gcs")

	p.check(oneOf(c.Queue.Backend, "local", "redis"),
		"QUEUE_BACKEND (%q) must be one of: local, redis", c.Queue.Backend)
	if c.Queue.Backend == "redis" {
		p.check(c.Queue.RedisAddr != "", "REDIS_ADDR is required when QUEUE_BACKEND is redis")
		p.check(c.Queue.Stream != "" && c.Queue.Group != "",
			"QUEUE_STREAM and QUEUE_GROUP must be set when QUEUE_BACKEND is redis")
	}

	if c.Rate.Enabled {
		p.check(c.Rate.RequestsPerMinute > 0, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
		p.check(c.Rate.UploadLimit > 0, "RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
	}

	p.check(oneOf(strings.ToLower(c.Logging.Level), "debug", "info", "warn", "error"),
		"LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	p.check(oneOf(strings.ToLower(c.Logging.Format), "text", "json"),
		"LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and passwords are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		mask(c.Database.URL), c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Import: {MaxFileSize: %d, MaxConcurrent: %d, Executor: %q}, ",
		c.Import.MaxFileSize, c.Import.MaxConcurrent, c.Import.Executor)
	fmt.Fprintf(&b, "Storage: {Backend: %q, Bucket: %q}, ", c.Storage.Backend, c.Storage.Bucket)
	fmt.Fprintf(&b, "Queue: {Backend: %q, RedisAddr: %q, RedisPassword: %s}, ",
		c.Queue.Backend, c.Queue.RedisAddr, mask(c.Queue.RedisPassword))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
