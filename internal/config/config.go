package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/KorsanSoftware/camview/internal/logging"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envPrefix namespaces every environment variable the loader reads.
const envPrefix = "CAMVIEW_"

// LoadConfig fills opts with proper precedence: CLI args > env vars > config
// file. Fields are matched by their `toml` and `env` struct tags; the file
// path is taken from the field named Config. Flags explicitly set on cmd are
// never overwritten.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	changed := changedFlags(cmd)

	configPath := ""
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String {
		configPath = f.String()
	}

	if configPath != "" {
		if err := applyTOMLFile(configPath, v, t, changed); err != nil {
			return err
		}
	}

	applyEnv(v, t, changed)
	return nil
}

// changedFlags collects the names of flags the user set explicitly.
func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	})
	return changed
}

func applyTOMLFile(path string, v reflect.Value, t reflect.Type, changed map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		// A missing config file is not an error; defaults apply.
		return nil
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if changed[fieldNameToFlag(fieldType.Name)] {
			continue
		}

		tomlPath := fieldType.Tag.Get("toml")
		if tomlPath == "" {
			continue
		}
		if value := lookupTOML(doc, strings.Split(tomlPath, ".")); value != nil {
			setFieldValue(field, value)
		}
	}
	return nil
}

func applyEnv(v reflect.Value, t reflect.Type, changed map[string]bool) {
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if changed[fieldNameToFlag(fieldType.Name)] {
			continue
		}

		envKey := fieldType.Tag.Get("env")
		if envKey == "" {
			continue
		}
		if envValue := os.Getenv(envPrefix + envKey); envValue != "" {
			setFieldValueFromString(field, envValue)
		}
	}
}

// fieldNameToFlag converts a struct field name to its CLI flag name,
// matching how humacli derives flags. "LoggingLevel" -> "logging-level".
func fieldNameToFlag(fieldName string) string {
	var b strings.Builder
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// lookupTOML walks a parsed TOML document along dotted path segments.
func lookupTOML(doc map[string]any, path []string) any {
	if len(path) == 1 {
		return doc[path[0]]
	}
	next, ok := doc[path[0]].(map[string]any)
	if !ok {
		return nil
	}
	return lookupTOML(next, path[1:])
}

// setFieldValue assigns a decoded TOML value to a struct field.
func setFieldValue(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Float64:
		if f, ok := value.(float64); ok {
			field.SetFloat(f)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		arr, ok := value.([]any)
		if !ok {
			return
		}
		slice := make([]string, len(arr))
		for i, v := range arr {
			if s, ok := v.(string); ok {
				slice[i] = s
			}
		}
		field.Set(reflect.ValueOf(slice))
	}
}

// setFieldValueFromString assigns an env var string to a struct field.
func setFieldValueFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Float64:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			field.SetFloat(f)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(value, ",")
		slice := make([]string, len(parts))
		for i, part := range parts {
			slice[i] = strings.TrimSpace(part)
		}
		field.Set(reflect.ValueOf(slice))
	}
}

// LoadLoggingConfig reads the [logging] table of a TOML config file.
// The level and format keys are global; every other key sets the level of
// the named module. Missing or unreadable files yield defaults.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	if configPath == "" {
		return cfg
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}

	var doc struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return cfg
	}

	for key, value := range doc.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}

	return cfg
}
