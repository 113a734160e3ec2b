package session

import (
	"fmt"
	"log/slog"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/pipeline"
	"fieldsync/internal/transform"
)

// OptionsFromConfig builds session options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) (Options, error) {
	c := cfg.Clone()

	mode, err := pipeline.ParseMode(c.Pipeline.Mode)
	if err != nil {
		return Options{}, fmt.Errorf("pipeline mode: %w", err)
	}
	chain, err := transform.Build(c.Pipeline.Transforms)
	if err != nil {
		return Options{}, err
	}

	return Options{
		Pipeline: pipeline.Config{
			Delay:       time.Duration(c.Pipeline.DebounceMs) * time.Millisecond,
			Mode:        mode,
			Chain:       chain,
			BacklogWarn: c.Pipeline.BacklogWarn,
		},
		Logger: logger,
	}, nil
}

// Follow applies debounce changes from l to the session. The mode and the
// transform chain are fixed for the life of a session; changes to them are
// logged and take effect on the next start.
func (s *Session) Follow(l *config.Loader) {
	l.OnChange(func(cfg *config.Config) {
		s.SetDelay(cfg.Debounce())

		mode, err := pipeline.ParseMode(cfg.Pipeline.Mode)
		if err == nil && mode != s.pipe.Mode() {
			s.logger.Warn("pipeline mode change requires restart",
				"running", s.pipe.Mode().String(),
				"configured", mode.String(),
			)
		}
	})
}
