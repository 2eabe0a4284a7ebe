package vision

import (
	"strings"

	"github.com/dfeirstein/the-skin-lab/internal/domain/analysis"
	"github.com/dfeirstein/the-skin-lab/internal/platform/config"
	platformerrors "github.com/dfeirstein/the-skin-lab/internal/platform/errors"
	"github.com/dfeirstein/the-skin-lab/internal/platform/logging"
)

// New builds the provider selected by cfg.Provider.
func New(cfg config.AnalysisConfig, logger *logging.Logger) (analysis.Streamer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.ProviderOpenAI, "":
		return NewOpenAI(Config{
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Temperature: cfg.Temperature,
		}, logger)
	case config.ProviderStub:
		logger.WarnTag(logging.TagVision, "using stub provider, responses are canned")
		return NewStub(), nil
	default:
		return nil, platformerrors.New(platformerrors.KindConfig, "vision.new", "unsupported provider: "+cfg.Provider)
	}
}
