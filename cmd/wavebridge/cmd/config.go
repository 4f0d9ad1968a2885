package cmd

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/audiolink/wavebridge/internal/config"
	"github.com/audiolink/wavebridge/pkg/duration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

Redirect this output to a file to create a configuration template:

  wavebridge config dump > config.yaml

Configuration can be set via:
  - Config file (.wavebridge.yaml, /etc/wavebridge/config.yaml)
  - Environment variables (WAVEBRIDGE_SERVER_PORT, WAVEBRIDGE_BACKEND_BASE_URL, ...)
  - Command-line flags (for some options)

Environment variables use the WAVEBRIDGE_ prefix and underscores for
nesting. Example: server.port -> WAVEBRIDGE_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a config struct to a map, formatting durations for
// human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = duration.Format(v)
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	yamlData, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# wavebridge Configuration File")
	fmt.Println("# =============================")
	fmt.Println("#")
	fmt.Println("# All values shown below are defaults.")
	fmt.Println("# Duration format: 30s, 5m, 1h")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   WAVEBRIDGE_SERVER_HOST, WAVEBRIDGE_SERVER_PORT")
	fmt.Println("#   WAVEBRIDGE_DATABASE_DRIVER, WAVEBRIDGE_DATABASE_DSN")
	fmt.Println("#   WAVEBRIDGE_BACKEND_BASE_URL, WAVEBRIDGE_BACKEND_REALTIME_ENABLED")
	fmt.Println("#   WAVEBRIDGE_LOGGING_LEVEL, WAVEBRIDGE_LOGGING_FORMAT")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
