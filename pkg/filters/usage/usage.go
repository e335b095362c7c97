package usage

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"xispeech.dev/pkg/filters"
	"xispeech.dev/pkg/metadata"
	"xispeech.dev/pkg/object"
)

const anonymousKeyID = "anonymous"

var (
	_ filters.RequestFilter          = (*UsageFilter)(nil)
	_ filters.OnSpeechResponseFilter = (*UsageFilter)(nil)
)

// Record is the accumulated usage of one API key on one model.
type Record struct {
	APIKeyID   string `json:"api_key_id" yaml:"api_key_id"`
	Model      string `json:"model" yaml:"model"`
	Requests   uint64 `json:"requests" yaml:"requests"`
	Characters uint64 `json:"characters" yaml:"characters"`
}

type recordKey struct {
	apiKeyID string
	model    string
}

// UsageFilter tallies billed characters per API key and model.
type UsageFilter struct {
	filters.IsRequestFilter

	mutex   sync.Mutex
	records map[recordKey]*Record
}

func New() *UsageFilter {
	return &UsageFilter{
		records: make(map[recordKey]*Record),
	}
}

// OnSpeechResponse prefers the upstream x-character-count header and falls
// back to the rune count of the input when the upstream did not send one.
func (f *UsageFilter) OnSpeechResponse(ctx context.Context, request object.SpeechRequest, response object.SpeechResponse) filters.RequestFilterResult {
	characters := response.GetCharacterCount()
	if characters <= 0 {
		characters = utf8.RuneCountInString(request.GetInput())
	}

	apiKeyID := metadata.RequestMetadataFromCtx(ctx).AuthInfo.GetAPIKeyID()
	if apiKeyID == "" {
		apiKeyID = anonymousKeyID
	}

	f.add(apiKeyID, request.GetModel(), uint64(characters))

	slog.Info("report usage",
		slog.String("apikey_id", apiKeyID),
		slog.String("model", request.GetModel()),
		slog.String("upstream_request_id", response.GetRequestID()),
		slog.Int("characters", characters),
	)

	return filters.NewOK()
}

func (f *UsageFilter) add(apiKeyID string, model string, characters uint64) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	key := recordKey{apiKeyID: apiKeyID, model: model}

	record, ok := f.records[key]
	if !ok {
		record = &Record{APIKeyID: apiKeyID, Model: model}
		f.records[key] = record
	}

	record.Requests++
	record.Characters += characters
}

// Snapshot returns a copy of all records ordered by API key ID, then model.
func (f *UsageFilter) Snapshot() []Record {
	f.mutex.Lock()

	records := make([]Record, 0, len(f.records))
	for _, r := range f.records {
		records = append(records, *r)
	}

	f.mutex.Unlock()

	slices.SortFunc(records, func(a, b Record) int {
		if c := strings.Compare(a.APIKeyID, b.APIKeyID); c != 0 {
			return c
		}

		return strings.Compare(a.Model, b.Model)
	})

	return records
}
