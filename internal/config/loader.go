package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// step8 enforces the bitrate_kbps invariant from the data model: a
	// multiple of 8, checked separately from the min/max range tags.
	v.RegisterValidation("step8", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%8 == 0
	})
	return v
}

// Load reads and validates the main server config file.
func Load(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, newConfigError(path, validationIssues(err))
	}
	return &cfg, nil
}

// LoadStreamConfig reads and validates the per-subchannel stream config
// file, rejecting the whole file if any subchannel entry fails
// validation so a single bad entry can't half-configure the ensemble.
func LoadStreamConfig(path string) (StreamConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg StreamConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	var issues []string
	for name, entry := range cfg {
		if err := validate.Struct(entry); err != nil {
			for _, i := range validationIssues(err) {
				issues = append(issues, name+"."+i)
			}
		}
		if entry.OutputKind == "packet_data" && entry.InputKind == "gst_uri" {
			issues = append(issues, name+": packet_data streams cannot use gst_uri input")
		}
	}
	if len(issues) > 0 {
		return nil, newConfigError(path, issues)
	}
	return cfg, nil
}

func validationIssues(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	issues := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return issues
}
