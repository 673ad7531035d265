package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if len(c.Venues) == 0 {
		return errors.New("at least one venue is required")
	}

	seen := make(map[string]bool, len(c.Venues))
	for _, v := range c.Venues {
		if err := v.validate(); err != nil {
			return err
		}
		if seen[v.Name] {
			return fmt.Errorf("duplicate venue name %q", v.Name)
		}
		seen[v.Name] = true
	}

	if c.Backoff.JitterFrac < 0 || c.Backoff.JitterFrac > 1 {
		return errors.New("backoff.jitter_frac must be in [0, 1]")
	}
	if c.Backoff.Cap < c.Backoff.Base {
		return errors.New("backoff.cap must be >= backoff.base")
	}
	if c.Writer.FsyncRecords < 1 {
		return errors.New("writer.fsync_records must be >= 1")
	}
	if c.Telemetry.ErrorSampleRate < 0 || c.Telemetry.ErrorSampleRate > 1 {
		return errors.New("telemetry.error_sample_rate must be in [0, 1]")
	}

	return nil
}

func (v VenueConfig) validate() error {
	prefix := fmt.Sprintf("venue %q", v.Name)

	if v.Name == "" {
		return errors.New("venue.name is required")
	}
	if v.Driver != DriverSingleBook && v.Driver != DriverDuoBook {
		return fmt.Errorf("%s: driver must be %q or %q, got %q", prefix, DriverSingleBook, DriverDuoBook, v.Driver)
	}
	if v.BaseURL == "" {
		return fmt.Errorf("%s: base_url is required", prefix)
	}
	if v.MaxWorkers < 1 {
		return fmt.Errorf("%s: max_workers must be >= 1", prefix)
	}
	if v.AIMD.Ceiling < 1 {
		return fmt.Errorf("%s: aimd.ceiling must be >= 1", prefix)
	}
	if v.AIMD.Ceiling > v.MaxWorkers {
		return fmt.Errorf("%s: aimd.ceiling (%d) cannot exceed max_workers (%d)", prefix, v.AIMD.Ceiling, v.MaxWorkers)
	}
	if v.AIMD.HighFail <= 0 || v.AIMD.HighFail > 1 {
		return fmt.Errorf("%s: aimd.high_fail must be in (0, 1]", prefix)
	}
	if v.RequestTimeout <= 0 {
		return fmt.Errorf("%s: request_timeout must be > 0", prefix)
	}

	return nil
}
