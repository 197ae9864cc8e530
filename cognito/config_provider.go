package cognito

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigProvider resolves named settings for NewConfig.
type ConfigProvider interface {
	// Lookup returns the setting's value and whether it was set.
	Lookup(key string) (string, bool)
}

// MapProvider is a ConfigProvider backed by a map.
type MapProvider map[string]string

// Lookup implements ConfigProvider.
func (m MapProvider) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// EnvProvider is a ConfigProvider backed by the process environment.
type EnvProvider struct{}

// Lookup implements ConfigProvider.
func (EnvProvider) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// DotEnvProvider is a ConfigProvider backed by .env files. Settings missing
// from the files are looked up in the process environment.
type DotEnvProvider struct {
	values MapProvider
}

// NewDotEnvProvider reads the files, in order, with later files taking
// precedence. With no filenames it reads .env from the working directory.
func NewDotEnvProvider(filenames ...string) (*DotEnvProvider, error) {
	const op = "cognito.NewDotEnvProvider"
	values, err := godotenv.Read(filenames...)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read env files: %w", op, err)
	}
	return &DotEnvProvider{values: values}, nil
}

// Lookup implements ConfigProvider.
func (p *DotEnvProvider) Lookup(key string) (string, bool) {
	if v, ok := p.values.Lookup(key); ok {
		return v, true
	}
	return EnvProvider{}.Lookup(key)
}

// ViperProvider is a ConfigProvider backed by a viper instance, so settings
// can come from any source viper supports. List values are joined with
// commas.
type ViperProvider struct {
	v *viper.Viper
}

// NewViperProvider creates a ViperProvider.
func NewViperProvider(v *viper.Viper) (*ViperProvider, error) {
	const op = "cognito.NewViperProvider"
	if v == nil {
		return nil, fmt.Errorf("%s: viper instance is nil: %w", op, ErrNilParameter)
	}
	return &ViperProvider{v: v}, nil
}

// Lookup implements ConfigProvider.
func (p *ViperProvider) Lookup(key string) (string, bool) {
	if !p.v.IsSet(key) {
		return "", false
	}
	switch t := p.v.Get(key).(type) {
	case []string:
		return strings.Join(t, ","), true
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, v := range t {
			parts = append(parts, fmt.Sprint(v))
		}
		return strings.Join(parts, ","), true
	default:
		return p.v.GetString(key), true
	}
}
