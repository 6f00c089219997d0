package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all pipeline configuration. It is loaded once at startup and
// treated as immutable afterwards; every pipeline entry point receives it
// explicitly rather than reading process-wide state.
type Config struct {
	Currency       string
	DateLayouts    []string
	RedactPHI      bool
	Debug          bool
	HeaderSynonyms map[string][]string
	Explainer      ExplainerConfig
}

// ExplainerConfig selects and tunes the narrative provider.
type ExplainerConfig struct {
	Provider           string
	APIKey             string
	Model              string
	Temperature        float64
	MaxTokens          int
	TimeoutSecs        int
	CodeDictionaryPath string
}

// Load builds the configuration from defaults, an optional config file named
// by MEDBILL_CONFIG_FILE, and MEDBILL_* environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEDBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("output.currency", "$")
	v.SetDefault("redact.phi", true)
	v.SetDefault("debug", false)
	v.SetDefault("dates.layouts", "01/02/2006,2006-01-02,01-02-2006")
	v.SetDefault("explainer.provider", "deterministic")
	v.SetDefault("explainer.api_key", "")
	v.SetDefault("explainer.model", "")
	v.SetDefault("explainer.temperature", 0.2)
	v.SetDefault("explainer.max_tokens", 350)
	v.SetDefault("explainer.timeout_secs", 30)
	v.SetDefault("explainer.code_dictionary", "")

	envBindings := map[string]string{
		"output.currency":           "MEDBILL_OUTPUT_CURRENCY",
		"redact.phi":                "MEDBILL_REDACT_PHI",
		"debug":                     "MEDBILL_DEBUG",
		"dates.layouts":             "MEDBILL_DATES_LAYOUTS",
		"explainer.provider":        "MEDBILL_EXPLAINER_PROVIDER",
		"explainer.api_key":         "MEDBILL_EXPLAINER_API_KEY",
		"explainer.model":           "MEDBILL_EXPLAINER_MODEL",
		"explainer.temperature":     "MEDBILL_EXPLAINER_TEMPERATURE",
		"explainer.max_tokens":      "MEDBILL_EXPLAINER_MAX_TOKENS",
		"explainer.timeout_secs":    "MEDBILL_EXPLAINER_TIMEOUT_SECS",
		"explainer.code_dictionary": "MEDBILL_EXPLAINER_CODE_DICTIONARY",
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	// The config file is optional; it can override scalars and replace
	// individual header synonym lists.
	if path := os.Getenv("MEDBILL_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var layouts []string
	for _, layout := range strings.Split(v.GetString("dates.layouts"), ",") {
		layout = strings.TrimSpace(layout)
		if layout != "" {
			layouts = append(layouts, layout)
		}
	}
	if len(layouts) == 0 {
		return nil, fmt.Errorf("dates.layouts must name at least one layout")
	}

	synonyms := DefaultHeaderSynonyms()
	if v.IsSet("header_synonyms") {
		overrides := map[string][]string{}
		if err := v.UnmarshalKey("header_synonyms", &overrides); err != nil {
			return nil, fmt.Errorf("decoding header_synonyms: %w", err)
		}
		for canonical, alts := range overrides {
			synonyms[canonical] = alts
		}
	}

	return &Config{
		Currency:       v.GetString("output.currency"),
		DateLayouts:    layouts,
		RedactPHI:      v.GetBool("redact.phi"),
		Debug:          v.GetBool("debug"),
		HeaderSynonyms: synonyms,
		Explainer: ExplainerConfig{
			Provider:           v.GetString("explainer.provider"),
			APIKey:             v.GetString("explainer.api_key"),
			Model:              v.GetString("explainer.model"),
			Temperature:        v.GetFloat64("explainer.temperature"),
			MaxTokens:          v.GetInt("explainer.max_tokens"),
			TimeoutSecs:        v.GetInt("explainer.timeout_secs"),
			CodeDictionaryPath: v.GetString("explainer.code_dictionary"),
		},
	}, nil
}

// DefaultHeaderSynonyms maps canonical line-item fields to the raw column
// labels seen across varied statements. Lookup is done on lower-cased,
// trimmed labels.
func DefaultHeaderSynonyms() map[string][]string {
	return map[string][]string{
		"description":        {"description", "service", "item", "procedure", "cpt description"},
		"code":               {"code", "cpt", "hcpcs", "rev", "rev code", "procedure code"},
		"code_type":          {"code type", "cpt/hcpcs", "rev type"},
		"modifiers":          {"modifiers", "modifier", "mod"},
		"units":              {"units", "qty", "quantity"},
		"date_of_service":    {"dos", "date", "service date", "date of service"},
		"charge":             {"charge", "charges", "billed", "amount", "amount billed"},
		"allowed":            {"allowed", "allowed amount", "allowed amt", "negotiated", "contracted"},
		"adjustment":         {"adjustment", "adjustments", "adj", "discount", "write off", "write-off"},
		"payer_paid":         {"insurance paid", "ins paid", "plan paid", "payer paid", "paid by insurer"},
		"deductible":         {"deductible", "ded"},
		"copay":              {"copay", "co-pay"},
		"coinsurance":        {"coinsurance", "coins"},
		"non_covered":        {"non covered", "non-covered", "not covered"},
		"patient_resp_total": {"patient responsibility", "patient owes", "patient amount", "you owe"},
	}
}
