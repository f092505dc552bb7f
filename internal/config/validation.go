package config

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/language"
)

var validRights = map[string]bool{"view": true, "edit": true, "delete": true, "publish": true}

var validParamTypes = map[string]bool{"document": true, "attachment": true, "page": true, "pageAttachment": true}

// ValidateConfig validates the complete configuration structure.
func ValidateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateStore(); err != nil {
		return err
	}
	if err := cv.validateJobs(); err != nil {
		return err
	}
	if err := cv.validateAuth(); err != nil {
		return err
	}
	if err := cv.validatePublication(); err != nil {
		return err
	}
	if err := cv.validateMacros(); err != nil {
		return err
	}
	if err := cv.validateArchive(); err != nil {
		return err
	}
	if cv.config.Server.MaxConnections < 0 {
		return errors.New("server.max_connections cannot be negative")
	}
	return cv.validateSchedules()
}

func (cv *configurationValidator) validateStore() error {
	switch cv.config.Store.Driver {
	case StoreDriverMemory:
		return nil
	case StoreDriverSQLite:
		if cv.config.Store.Path == "" {
			return errors.New("store.path is required for the sqlite driver")
		}
		return nil
	default:
		return fmt.Errorf("invalid store driver: %s", cv.config.Store.Driver)
	}
}

func (cv *configurationValidator) validateJobs() error {
	jobs := cv.config.Jobs
	if jobs.MaxRetries < 0 {
		return errors.New("jobs.max_retries cannot be negative")
	}
	if NormalizeRetryBackoff(string(jobs.RetryBackoff)) == "" {
		return fmt.Errorf("invalid jobs.retry_backoff: %s", jobs.RetryBackoff)
	}
	initial, err := time.ParseDuration(jobs.RetryInitialDelay)
	if err != nil || initial <= 0 {
		return fmt.Errorf("invalid jobs.retry_initial_delay: %s", jobs.RetryInitialDelay)
	}
	maxDelay, err := time.ParseDuration(jobs.RetryMaxDelay)
	if err != nil || maxDelay <= 0 {
		return fmt.Errorf("invalid jobs.retry_max_delay: %s", jobs.RetryMaxDelay)
	}
	if initial > maxDelay {
		return errors.New("jobs.retry_initial_delay must not exceed jobs.retry_max_delay")
	}
	return nil
}

func (cv *configurationValidator) validateAuth() error {
	for user, grants := range cv.config.Auth.Users {
		if user == "" {
			return errors.New("auth user name cannot be empty")
		}
		for _, g := range grants {
			for _, r := range g.Rights {
				if !validRights[r] {
					return fmt.Errorf("invalid right %q for user %s", r, user)
				}
			}
		}
	}
	if cv.config.Auth.Enabled && cv.config.Auth.DefaultUser != "" {
		if _, ok := cv.config.Auth.Users[cv.config.Auth.DefaultUser]; !ok {
			return fmt.Errorf("auth.default_user %s has no grants", cv.config.Auth.DefaultUser)
		}
	}
	return nil
}

func (cv *configurationValidator) validatePublication() error {
	if _, err := language.Parse(cv.config.Publication.DefaultLanguage); err != nil {
		return fmt.Errorf("invalid publication.default_language %q: %w", cv.config.Publication.DefaultLanguage, err)
	}
	return nil
}

func (cv *configurationValidator) validateMacros() error {
	seen := make(map[string]bool)
	for _, m := range cv.config.Macros {
		if m.ID == "" {
			return errors.New("macro id cannot be empty")
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate macro descriptor: %s", m.ID)
		}
		seen[m.ID] = true
		switch m.Content {
		case "", "richtext", "opaque":
		default:
			return fmt.Errorf("invalid content kind %q for macro %s", m.Content, m.ID)
		}
		for param, typ := range m.Params {
			if !validParamTypes[typ] {
				return fmt.Errorf("invalid parameter type %q for %s.%s", typ, m.ID, param)
			}
		}
	}
	return nil
}

func (cv *configurationValidator) validateArchive() error {
	if cv.config.Archive.Enabled && cv.config.Archive.Directory == "" {
		return errors.New("archive.directory is required when archive is enabled")
	}
	return nil
}

func (cv *configurationValidator) validateSchedules() error {
	names := make(map[string]bool)
	for _, s := range cv.config.Schedules {
		if s.Name == "" {
			return errors.New("schedule name cannot be empty")
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate schedule name: %s", s.Name)
		}
		names[s.Name] = true
		if s.Configuration == "" {
			return fmt.Errorf("schedule %s: configuration is required", s.Name)
		}
		d, err := time.ParseDuration(s.Interval)
		if err != nil {
			return fmt.Errorf("schedule %s: invalid interval %q: %w", s.Name, s.Interval, err)
		}
		if d < time.Minute {
			return fmt.Errorf("schedule %s: interval must be at least 1m", s.Name)
		}
	}
	return nil
}
