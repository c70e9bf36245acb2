// Package config loads the YAML files that describe a replay: the display, the
// observer options, the elements to observe and a script of scroll, resize and
// event steps.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/chrisuehlinger/viewwatch/geometry"
	"github.com/chrisuehlinger/viewwatch/observer"
)

// Config holds a complete replay description.
type Config struct {
	Display  DisplayConfig  `yaml:"display"`
	Log      LogConfig      `yaml:"log"`
	Observer ObserverConfig `yaml:"observer"`

	// Observe lists the ids of the elements observed before the script runs.
	Observe []string `yaml:"observe"`

	Script []Step `yaml:"script"`
}

// DisplayConfig is the visible display area.
type DisplayConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Size returns the display as a geometry size.
func (d DisplayConfig) Size() geometry.Size {
	return geometry.NewSize(d.Width, d.Height)
}

// LogConfig configures the zap logger built by the CLI.
type LogConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// ObserverConfig mirrors observer.Options for file use.
type ObserverConfig struct {
	RootMargin string    `yaml:"root_margin"`
	Threshold  []float64 `yaml:"threshold"`
	// BlockingTimeMS is the throttle cooldown. Absent means the default; 0
	// disables the cooldown.
	BlockingTimeMS *int `yaml:"blocking_time_ms"`
	// SecondaryScrollArea is the id of the element used as the secondary clip.
	SecondaryScrollArea string         `yaml:"secondary_scroll_area"`
	Trigger             *TriggerConfig `yaml:"trigger"`
}

// BlockingTime converts BlockingTimeMS to an observer.Options value.
func (o ObserverConfig) BlockingTime() time.Duration {
	switch {
	case o.BlockingTimeMS == nil:
		return 0
	case *o.BlockingTimeMS == 0:
		return observer.NoBlocking
	default:
		return time.Duration(*o.BlockingTimeMS) * time.Millisecond
	}
}

// TriggerConfig is a custom recheck event fired on a target.
type TriggerConfig struct {
	// Target is "window", "document" or an element id.
	Target string `yaml:"target"`
	Event  string `yaml:"event"`
}

// Step is one script action. Exactly one field must be set.
type Step struct {
	Scroll     *ScrollStep `yaml:"scroll,omitempty"`
	Resize     *ResizeStep `yaml:"resize,omitempty"`
	Emit       *EmitStep   `yaml:"emit,omitempty"`
	WaitMS     *int        `yaml:"wait_ms,omitempty"`
	Observe    string      `yaml:"observe,omitempty"`
	Unobserve  string      `yaml:"unobserve,omitempty"`
	Disconnect bool        `yaml:"disconnect,omitempty"`
}

// ScrollStep scrolls the document (empty target) or a scrollable element.
type ScrollStep struct {
	Target string  `yaml:"target"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
}

// ResizeStep changes the display size.
type ResizeStep struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// EmitStep dispatches a named event on a target.
type EmitStep struct {
	Target string `yaml:"target"`
	Event  string `yaml:"event"`
}

// Step kinds returned by Step.Kind.
const (
	StepScroll     = "scroll"
	StepResize     = "resize"
	StepEmit       = "emit"
	StepWait       = "wait_ms"
	StepObserve    = "observe"
	StepUnobserve  = "unobserve"
	StepDisconnect = "disconnect"
)

// Kind names the single action the step performs, or "" when it has none or
// more than one.
func (s Step) Kind() string {
	var kinds []string
	if s.Scroll != nil {
		kinds = append(kinds, StepScroll)
	}
	if s.Resize != nil {
		kinds = append(kinds, StepResize)
	}
	if s.Emit != nil {
		kinds = append(kinds, StepEmit)
	}
	if s.WaitMS != nil {
		kinds = append(kinds, StepWait)
	}
	if s.Observe != "" {
		kinds = append(kinds, StepObserve)
	}
	if s.Unobserve != "" {
		kinds = append(kinds, StepUnobserve)
	}
	if s.Disconnect {
		kinds = append(kinds, StepDisconnect)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Display: DisplayConfig{Width: 1024, Height: 768},
		Log:     LogConfig{Level: "info"},
		Observer: ObserverConfig{
			RootMargin: "0px",
			Threshold:  []float64{0},
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, errors.Wrap(err, "failed to read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML document on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets VIEWWATCH_LOG_LEVEL override the file.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("VIEWWATCH_LOG_LEVEL"); level != "" {
		c.Log.Level = strings.ToLower(level)
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Display.Width < 0 || c.Display.Height < 0 {
		return errors.Errorf("display size %vx%v is negative", c.Display.Width, c.Display.Height)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}

	if _, err := geometry.ParseMargin(c.Observer.RootMargin); err != nil {
		return errors.Wrap(err, "observer.root_margin")
	}
	if ms := c.Observer.BlockingTimeMS; ms != nil && *ms < 0 {
		return errors.Errorf("observer.blocking_time_ms: %d is negative", *ms)
	}
	if t := c.Observer.Trigger; t != nil && (t.Target == "" || t.Event == "") {
		return errors.New("observer.trigger: target and event must be given together")
	}

	for i, id := range c.Observe {
		if id == "" {
			return errors.Errorf("observe[%d]: empty element id", i)
		}
	}

	for i, step := range c.Script {
		kind := step.Kind()
		switch kind {
		case "":
			return errors.Errorf("script[%d]: a step needs exactly one action", i)
		case StepWait:
			if *step.WaitMS < 0 {
				return errors.Errorf("script[%d]: wait_ms %d is negative", i, *step.WaitMS)
			}
		case StepResize:
			if step.Resize.Width < 0 || step.Resize.Height < 0 {
				return errors.Errorf("script[%d]: resize to a negative size", i)
			}
		case StepEmit:
			if step.Emit.Event == "" {
				return errors.Errorf("script[%d]: emit needs an event", i)
			}
		}
	}
	return nil
}
