// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/mitchellh/mapstructure"

	"github.com/hashicorp/ams/lib"
)

// FileConfig is the agent configuration as written in a file or built from
// flags. Pointer fields distinguish "not set" from the zero value so later
// sources only override what they set.
type FileConfig struct {
	NodeName    *string `mapstructure:"node_name"`
	BindAddr    *string `mapstructure:"bind_addr"`
	Port        *int    `mapstructure:"port"`
	LogLevel    *string `mapstructure:"log_level"`
	LogJSON     *bool   `mapstructure:"log_json"`
	LogFile     *string `mapstructure:"log_file"`
	EagerRounds *bool   `mapstructure:"eager_rounds"`

	Providers  []Provider `mapstructure:"provider"`
	Collective Collective `mapstructure:"collective"`
	Telemetry  Telemetry  `mapstructure:"telemetry"`
}

type Provider struct {
	ID    *int    `mapstructure:"id"`
	Token *string `mapstructure:"token"`
}

type Collective struct {
	Rank          *int           `mapstructure:"rank"`
	Size          *int           `mapstructure:"size"`
	RootAddress   *string        `mapstructure:"root_address"`
	Check         *string        `mapstructure:"check"`
	ReduceTimeout *time.Duration `mapstructure:"reduce_timeout"`
	RetryInterval *time.Duration `mapstructure:"retry_interval"`
	RetryBurst    *int           `mapstructure:"retry_burst"`
}

type Telemetry struct {
	StatsdAddress   *string `mapstructure:"statsd_address"`
	StatsiteAddress *string `mapstructure:"statsite_address"`
	DisableHostname *bool   `mapstructure:"disable_hostname"`
	MetricsPrefix   *string `mapstructure:"metrics_prefix"`
}

// blocks that may repeat and so stay lists after decoding
var repeatedBlocks = []string{"provider"}

// Parse decodes one HCL or JSON document.
func Parse(data string) (FileConfig, error) {
	var c FileConfig

	var raw map[string]interface{}
	if err := hcl.Decode(&raw, data); err != nil {
		return c, err
	}
	raw = lib.PatchSliceOfMaps(raw, repeatedBlocks)

	var md mapstructure.Metadata
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		Metadata:    &md,
		Result:      &c,
		ErrorUnused: true,
	})
	if err != nil {
		return c, err
	}
	if err := d.Decode(raw); err != nil {
		return c, err
	}
	return c, nil
}

// ReadPaths reads every file, and every .hcl and .json file of every
// directory, in lexical order. Later files override earlier ones.
func ReadPaths(paths []string) (FileConfig, error) {
	var result FileConfig
	for _, path := range paths {
		files, err := expand(path)
		if err != nil {
			return result, err
		}
		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				return result, fmt.Errorf("Error reading '%s': %w", file, err)
			}
			c, err := Parse(string(data))
			if err != nil {
				return result, fmt.Errorf("Error decoding '%s': %w", file, err)
			}
			result = Merge(result, c)
		}
	}
	return result, nil
}

func expand(path string) ([]string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("Error reading '%s': %w", path, err)
	}
	if !fi.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("Error reading '%s': %w", path, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".hcl", ".json":
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	return files, nil
}

// Merge returns a with every field set in b overriding it. Provider lists
// are replaced as a whole.
func Merge(a, b FileConfig) FileConfig {
	mergeStruct(reflect.ValueOf(&a).Elem(), reflect.ValueOf(b))
	return a
}

func mergeStruct(dst, src reflect.Value) {
	for i := 0; i < src.NumField(); i++ {
		sf, df := src.Field(i), dst.Field(i)
		switch sf.Kind() {
		case reflect.Ptr:
			if !sf.IsNil() {
				df.Set(sf)
			}
		case reflect.Slice:
			if sf.Len() > 0 {
				df.Set(sf)
			}
		case reflect.Struct:
			mergeStruct(df, sf)
		}
	}
}
