// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
)

// Config is used to set up logging.
type Config struct {
	// LogLevel is the minimum level to be logged.
	LogLevel string

	// LogJSON controls outputing logs in a JSON format.
	LogJSON bool

	// Name is the name the returned logger will use to prefix log lines.
	Name string

	// Color is one of auto, on or off. Ignored for JSON output.
	Color string

	// LogFilePath is the path to write the logs to the user specified file.
	// A path ending in a separator gets the default file name.
	LogFilePath string
}

const defaultLogFileName = "ams.log"

// Setup builds the root hclog.InterceptLogger. Output goes to out (stderr
// when nil) and, when LogFilePath is set, is also appended to that file.
func Setup(config Config, out io.Writer) (hclog.InterceptLogger, error) {
	if !ValidateLogLevel(config.LogLevel) {
		return nil, fmt.Errorf("Invalid log level: %s. Valid log levels are: %v",
			config.LogLevel,
			allowedLogLevels)
	}

	color, err := NewColorOption(config.Color)
	if err != nil {
		return nil, err
	}

	if out == nil {
		out = os.Stderr
	}
	writers := []io.Writer{out}

	if config.LogFilePath != "" {
		dir, fileName := filepath.Split(config.LogFilePath)
		if fileName == "" {
			fileName = defaultLogFileName
		}
		f, err := os.OpenFile(filepath.Join(dir, fileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		if err != nil {
			return nil, err
		}
		writers = append(writers, f)
		// the file also receives colored output otherwise
		color = hclog.ColorOff
	}

	logger := hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Level:      LevelFromString(config.LogLevel),
		Name:       config.Name,
		Output:     io.MultiWriter(writers...),
		JSONFormat: config.LogJSON,
		Color:      color,
	})
	return logger, nil
}

// NewNullLogger returns a logger that discards everything.
func NewNullLogger() hclog.InterceptLogger {
	return hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Output: io.Discard,
		Level:  hclog.Off,
	})
}

// NewColorOption maps the configured color mode onto hclog.
func NewColorOption(v string) (hclog.ColorOption, error) {
	switch v {
	case "", "auto":
		return hclog.AutoColor, nil
	case "on", "always":
		return hclog.ForceColor, nil
	case "off", "never":
		return hclog.ColorOff, nil
	}
	return hclog.ColorOff, fmt.Errorf("invalid color value %q, must be one of: auto, on, off", v)
}
