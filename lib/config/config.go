package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"sourcerer/lib/composite"
)

// Config holds all configuration for the switcher daemon. Every field is
// read from SOURCERER_<name>.
type Config struct {
	// Output
	FrameRate float64 `envconfig:"FRAME_RATE" default:"30"`
	Width     int     `envconfig:"WIDTH" default:"1280"`
	Height    int     `envconfig:"HEIGHT" default:"720"`
	Workers   int     `envconfig:"WORKERS" default:"0"`

	// Switching
	TransitionDuration time.Duration `envconfig:"TRANSITION_DURATION" default:"1s"`
	QueueEnabled       bool          `envconfig:"QUEUE_ENABLED" default:"true"`
	WrapNext           bool          `envconfig:"WRAP_NEXT" default:"false"`
	BlurQuality        string        `envconfig:"BLUR_QUALITY" default:"gaussian"`

	// Sources
	SourcesPath  string `envconfig:"SOURCES" default:"sources.yaml"`
	MediaDir     string `envconfig:"MEDIA_DIR" default:"."`
	WatchSources bool   `envconfig:"WATCH_SOURCES" default:"true"`
	// MockSources, when positive, replaces the source file with a generated list.
	MockSources int    `envconfig:"MOCK_SOURCES" default:"0"`
	MockSeed    uint64 `envconfig:"MOCK_SEED" default:"1"`

	// Control surfaces. An empty address or port name disables the surface.
	OSCAddr    string `envconfig:"OSC_ADDR" default:":53535"`
	HTTPAddr   string `envconfig:"HTTP_ADDR" default:":8080"`
	MIDIPort   string `envconfig:"MIDI_PORT" default:""`
	StreamDeck bool   `envconfig:"STREAMDECK" default:"false"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var config Config
	if err := envconfig.Process("sourcerer", &config); err != nil {
		return nil, err
	}
	if err := validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func validate(config *Config) error {
	if config.FrameRate <= 0 || config.FrameRate > 240 {
		return fmt.Errorf("FRAME_RATE must be in (0, 240]")
	}
	if config.Width <= 0 || config.Height <= 0 {
		return fmt.Errorf("WIDTH and HEIGHT must be greater than 0")
	}
	if config.Workers < 0 {
		return fmt.Errorf("WORKERS must not be negative")
	}
	if config.TransitionDuration < 0 {
		return fmt.Errorf("TRANSITION_DURATION must not be negative")
	}
	if _, err := config.Blur(); err != nil {
		return err
	}
	if config.SourcesPath == "" && config.MockSources <= 0 {
		return fmt.Errorf("SOURCES is required unless MOCK_SOURCES is set")
	}
	if _, err := logrus.ParseLevel(config.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// FrameInterval is the tick period.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.FrameRate)
}

func (c *Config) Blur() (composite.BlurQuality, error) {
	switch c.BlurQuality {
	case "gaussian":
		return composite.BlurGaussian, nil
	case "box":
		return composite.BlurBox, nil
	}
	return 0, fmt.Errorf("BLUR_QUALITY must be gaussian or box, got %q", c.BlurQuality)
}

// Level is the parsed LogLevel; validate has already checked it.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
