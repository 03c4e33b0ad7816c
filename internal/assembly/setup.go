package assembly

import (
	"fmt"

	"github.com/a3tai/casedocs/internal/config"
	"github.com/a3tai/casedocs/internal/mapping"
	"github.com/a3tai/casedocs/internal/templates"
	"github.com/sirupsen/logrus"
)

// FromConfig wires the mapping tables and template sources named by cfg
func FromConfig(cfg *config.Config, logger logrus.FieldLogger) (*Assembler, error) {
	registry, err := mapping.Load(cfg.MappingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping tables: %w", err)
	}

	source, err := templates.NewSource(templates.Options{
		Dir:       cfg.TemplateDir,
		BaseURL:   cfg.TemplateURL,
		MaxSize:   cfg.MaxFileSize,
		CacheSize: cfg.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up templates: %w", err)
	}

	a := New(registry, source, logger)
	a.SetWorkers(cfg.Workers)
	a.log.WithField("assembler", a.String()).Debug("Assembler ready")
	return a, nil
}
