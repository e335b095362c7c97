package elevenlabs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"

	"xispeech.dev/pkg/elevenlabs/models"
	"xispeech.dev/pkg/object"
)

const (
	// MaxRequestIDs is the most request IDs either continuity list may hold.
	MaxRequestIDs = 3

	TextNormalizationAuto = "auto"
	TextNormalizationOn   = "on"
	TextNormalizationOff  = "off"
)

var textNormalizationModes = []string{
	TextNormalizationAuto,
	TextNormalizationOn,
	TextNormalizationOff,
}

// TTSRequest is a finalized text-to-speech request. VoiceID travels in the URL
// path and OutputFormat in the output_format query parameter, so neither is
// part of the JSON body.
type TTSRequest struct {
	Text         string `json:"text"`
	VoiceID      string `json:"-"`
	OutputFormat string `json:"-"`
	ModelID      string `json:"model_id"`

	LanguageCode       *string  `json:"language_code,omitempty"`
	Seed               *uint32  `json:"seed,omitempty"`
	PreviousText       *string  `json:"previous_text,omitempty"`
	NextText           *string  `json:"next_text,omitempty"`
	PreviousRequestIDs []string `json:"previous_request_ids,omitempty"`
	NextRequestIDs     []string `json:"next_request_ids,omitempty"`

	ApplyTextNormalization         string        `json:"apply_text_normalization"`
	ApplyLanguageTextNormalization bool          `json:"apply_language_text_normalization"`
	VoiceSettings                  VoiceSettings `json:"voice_settings"`

	SettingsVersion SettingsVersion `json:"-"`
}

// Body returns the JSON request body.
func (r *TTSRequest) Body() ([]byte, error) {
	return json.Marshal(r)
}

// URL returns {base}/text-to-speech/{voice_id}?output_format={format}. The
// voice ID is always escaped as one path segment.
func (r *TTSRequest) URL(baseURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}

	parsed = parsed.JoinPath("text-to-speech")
	parsed.RawPath = parsed.EscapedPath() + "/" + url.PathEscape(r.VoiceID)
	parsed.Path += "/" + r.VoiceID

	if r.OutputFormat != "" {
		query := parsed.Query()
		query.Set("output_format", r.OutputFormat)
		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

// Validate checks every finalize time constraint and reports all violations
// as one ValidationError.
func (r *TTSRequest) Validate() error {
	var errs *multierror.Error

	if strings.TrimSpace(r.Text) == "" {
		errs = multierror.Append(errs, errors.New("text must not be empty"))
	}

	if strings.TrimSpace(r.VoiceID) == "" {
		errs = multierror.Append(errs, errors.New("voice_id must not be empty"))
	} else if !isPathSegment(r.VoiceID) {
		errs = multierror.Append(errs, fmt.Errorf("voice_id %q is not a single path segment", r.VoiceID))
	}

	if strings.TrimSpace(r.ModelID) == "" {
		errs = multierror.Append(errs, errors.New("model_id must not be empty"))
	}

	if r.OutputFormat != "" && !models.IsOutputFormat(r.OutputFormat) {
		errs = multierror.Append(errs, fmt.Errorf("output_format %q is not one of %s", r.OutputFormat, strings.Join(models.OutputFormats(), ", ")))
	}

	if len(r.PreviousRequestIDs) > MaxRequestIDs {
		errs = multierror.Append(errs, fmt.Errorf("previous_request_ids has %d entries, at most %d are allowed", len(r.PreviousRequestIDs), MaxRequestIDs))
	}

	if len(r.NextRequestIDs) > MaxRequestIDs {
		errs = multierror.Append(errs, fmt.Errorf("next_request_ids has %d entries, at most %d are allowed", len(r.NextRequestIDs), MaxRequestIDs))
	}

	if !lo.Contains(textNormalizationModes, r.ApplyTextNormalization) {
		errs = multierror.Append(errs, fmt.Errorf("apply_text_normalization %q is not one of auto, on or off", r.ApplyTextNormalization))
	}

	if err := r.VoiceSettings.validate(r.SettingsVersion); err != nil {
		errs = multierror.Append(errs, err)
	}

	if errs == nil {
		return nil
	}

	errs.ErrorFormat = joinErrors

	return object.NewValidationErrorWithCause(errs)
}

// isPathSegment reports whether s stays a single path segment once it is
// placed in a URL.
func isPathSegment(s string) bool {
	if s == "." || s == ".." {
		return false
	}

	return !strings.ContainsAny(s, "/?#\\")
}

func joinErrors(errs []error) string {
	return strings.Join(lo.Map(errs, func(err error, _ int) string { return err.Error() }), "; ")
}
