package confloader

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment prefix used by the server.
const DefaultEnvPrefix = "KVMESH_"

// Loader reads one configuration. A Loader is used once.
type Loader struct {
	envPrefix string
	filePath  string
	k         *koanf.Koanf
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the YAML file to read. An empty path skips the file.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		envPrefix: DefaultEnvPrefix,
		k:         koanf.New("."),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load overlays the file and the environment onto target, a pointer to a
// struct with koanf tags.
func (l *Loader) Load(target any) error {
	keys := structKeys(target)
	if keys == nil {
		return fmt.Errorf("confloader: target must be a pointer to a struct, got %T", target)
	}

	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return fmt.Errorf("read %s: %w", l.filePath, err)
		}
	}

	// KVMESH_STORAGE_SHARD_COUNT must become storage.shard_count, not
	// storage.shard.count, so env names resolve against the struct's keys.
	byEnv := make(map[string]string, len(keys))
	for _, k := range keys {
		byEnv[EnvName("", k)] = k
	}
	prefix := l.envPrefix
	transform := func(name string) string {
		if key, ok := byEnv[strings.TrimPrefix(name, prefix)]; ok {
			return key
		}
		// Unknown variables are dropped.
		return ""
	}
	if err := l.k.Load(env.Provider(prefix, ".", transform), nil); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// EnvName returns the environment variable that sets the dotted key.
func EnvName(prefix, key string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// structKeys lists the dotted koanf keys of target's leaf fields, or nil
// when target is not a pointer to a struct.
func structKeys(target any) []string {
	t := reflect.TypeOf(target)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil
	}
	keys := []string{}
	walkFields(t.Elem(), "", func(key string) { keys = append(keys, key) })
	return keys
}

func walkFields(t reflect.Type, prefix string, visit func(string)) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("koanf")
		if !f.IsExported() || name == "" || name == "-" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct && f.Type.String() != "time.Time" {
			walkFields(f.Type, name, visit)
			continue
		}
		visit(name)
	}
}
