// Package google provides a transcriber backed by Google Cloud
// Speech-to-Text batch recognition.
package google

import (
	"context"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"speech-transcription-service/internal/service/stt"
)

// Transcriber implements stt.Transcriber using Google Cloud Speech.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
type Transcriber struct {
	client *speech.Client
}

// New creates a Google Cloud Speech transcriber.
func New(ctx context.Context) (*Transcriber, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Transcriber{client: c}, nil
}

// languageCodes maps the plain-word language hints the API accepts to
// BCP-47 tags.
var languageCodes = map[string]string{
	"english":    "en-US",
	"spanish":    "es-ES",
	"french":     "fr-FR",
	"german":     "de-DE",
	"italian":    "it-IT",
	"portuguese": "pt-BR",
	"japanese":   "ja-JP",
	"mandarin":   "cmn-Hans-CN",
}

func languageCode(language string) string {
	if strings.Contains(language, "-") {
		// Already a BCP-47 tag.
		return language
	}
	if code, ok := languageCodes[strings.ToLower(language)]; ok {
		return code
	}
	return "en-US"
}

// recognitionConfig builds the recognition config for a request. Encoding
// and sample rate are left unset: WAV headers are self-describing, and
// declaring a rate the file does not match makes the service reject it.
func recognitionConfig(req stt.Request) *speechpb.RecognitionConfig {
	return &speechpb.RecognitionConfig{
		LanguageCode:          languageCode(req.Language),
		EnableWordTimeOffsets: req.WantTimestamps,
	}
}

// Transcribe reads the audio file and runs batch recognition. Status codes
// that indicate the audio itself was unusable surface as
// *stt.TranscriptionError; everything else stays an infrastructure error.
func (t *Transcriber) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	data, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	resp, err := t.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig(req),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	})
	if err != nil {
		if st, ok := status.FromError(err); ok {
			switch st.Code() {
			case codes.InvalidArgument, codes.OutOfRange, codes.FailedPrecondition:
				return nil, &stt.TranscriptionError{Reason: st.Message()}
			}
		}
		return nil, fmt.Errorf("google speech recognize: %w", err)
	}

	result := &stt.Result{}
	var text strings.Builder
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if text.Len() > 0 {
			text.WriteString(" ")
		}
		text.WriteString(strings.TrimSpace(alt.Transcript))

		if req.WantTimestamps && len(alt.Words) > 0 {
			first := alt.Words[0]
			last := alt.Words[len(alt.Words)-1]
			result.Chunks = append(result.Chunks, stt.Chunk{
				Start: first.StartTime.AsDuration().Seconds(),
				End:   last.EndTime.AsDuration().Seconds(),
				Text:  strings.TrimSpace(alt.Transcript),
			})
		}
	}
	result.Text = text.String()
	return result, nil
}

// Close releases the underlying gRPC connection.
func (t *Transcriber) Close() error {
	return t.client.Close()
}
