package openai

import (
	"log/slog"
	"net/http"

	"xispeech.dev/pkg/metadata"
	"xispeech.dev/pkg/utils"
)

// ResponseHandler renders handler results: responses that can write
// themselves do so, other values are encoded as JSON and errors are rendered
// as OpenAI error bodies.
func ResponseHandler() func(resp any, err error, writer http.ResponseWriter, request *http.Request) {
	return func(resp any, err error, writer http.ResponseWriter, request *http.Request) {
		rMeta := metadata.RequestMetadataFromCtx(request.Context())

		if err == nil {
			if resp == nil {
				return
			}

			if binaryResp, ok := resp.(interface {
				WriteTo(writer http.ResponseWriter) error
			}); ok {
				if statuser, ok := resp.(interface{ GetStatus() int }); ok {
					rMeta.StatusCode = statuser.GetStatus()
				} else {
					rMeta.StatusCode = http.StatusOK
				}

				if err := binaryResp.WriteTo(writer); err != nil {
					slog.Error("failed to write binary response", "error", err)
				}

				return
			}

			rMeta.StatusCode = http.StatusOK
			utils.WriteJSONForHTTP(http.StatusOK, resp, writer)

			return
		}

		openAIError := NewErrorFromServiceError(err)
		if openAIError.FromUpstream {
			slog.Error("upstream returned an error",
				"status", openAIError.Status,
				"code", openAIError.ErrorBody.Code,
				"message", openAIError.ErrorBody.Message,
				"type", openAIError.ErrorBody.Type,
			)
		} else if openAIError.Status >= http.StatusInternalServerError {
			slog.Error("failed to handle request", "error", openAIError, "cause", openAIError.Cause, "source_error", err.Error())
		}

		rMeta.StatusCode = openAIError.Status
		rMeta.ErrorMessage = openAIError.Error()

		utils.WriteJSONForHTTP(openAIError.Status, openAIError, writer)
	}
}
