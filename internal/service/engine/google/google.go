// Package google provides a Google Cloud Speech-to-Text transcription
// engine as an alternative to the local whisper backend.
package google

import (
	"context"
	"fmt"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"google.golang.org/api/option"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"

	"therapy-transcription-service/internal/models"
	"therapy-transcription-service/internal/observability/metrics"
	"therapy-transcription-service/internal/service/engine"
)

const provider = "google"

// defaultLanguage is sent when no hint is given; alternative language
// codes let the API pick the actual spoken language.
const defaultLanguage = "en-IN"

var alternativeLanguages = []string{"hi-IN", "ta-IN", "te-IN", "kn-IN", "ml-IN", "bn-IN", "pa-IN"}

// Engine implements engine.Engine using the synchronous Recognize API
// with word time offsets.
type Engine struct {
	client       *speech.Client
	sampleRateHz int
	metrics      *metrics.Metrics
}

// New creates a Google STT engine. credsFile may be empty, in which
// case application default credentials are used.
func New(ctx context.Context, credsFile string, sampleRateHz int) (*Engine, error) {
	var opts []option.ClientOption
	if credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	if sampleRateHz <= 0 {
		sampleRateHz = 16000
	}
	return &Engine{
		client:       c,
		sampleRateHz: sampleRateHz,
		metrics:      metrics.DefaultMetrics,
	}, nil
}

// Transcribe submits the whole PCM buffer for synchronous recognition.
// Translate mode is not supported by this backend; the request is
// served as plain transcription.
func (e *Engine) Transcribe(ctx context.Context, req engine.Request) (engine.Result, error) {
	if len(req.PCM) == 0 {
		return engine.Result{}, nil
	}

	lang := defaultLanguage
	altLangs := alternativeLanguages
	if code, ok := engine.LanguageCode(req.Language); ok {
		lang = code + "-IN"
		if code == "en" {
			lang = "en-IN"
		}
		altLangs = nil
	}

	start := time.Now()
	resp, err := e.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            int32(e.sampleRateHz),
			LanguageCode:               lang,
			AlternativeLanguageCodes:   altLangs,
			EnableWordTimeOffsets:      true,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: req.PCM},
		},
	})
	e.metrics.RecordEngineCall(provider, err, time.Since(start).Seconds())
	if err != nil {
		return engine.Result{}, &engine.Error{Provider: provider, Err: err}
	}

	var (
		segments     []models.Segment
		detected     string
		bestConf     float64
	)
	for _, res := range resp.Results {
		if len(res.Alternatives) == 0 {
			continue
		}
		alt := res.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}

		segStart, segEnd := wordSpan(alt)
		segments = append(segments, models.Segment{
			Start:      segStart,
			End:        segEnd,
			Text:       alt.Transcript,
			Confidence: float64(alt.Confidence),
		})
		if res.LanguageCode != "" && detected == "" {
			detected = res.LanguageCode
		}
		if float64(alt.Confidence) > bestConf {
			bestConf = float64(alt.Confidence)
		}
	}

	return engine.Result{
		Segments:           segments,
		Language:           detected,
		LanguageConfidence: bestConf,
	}, nil
}

// wordSpan derives segment boundaries from word time offsets.
func wordSpan(alt *speechpb.SpeechRecognitionAlternative) (float64, float64) {
	if len(alt.Words) == 0 {
		return 0, 0
	}
	first := alt.Words[0]
	last := alt.Words[len(alt.Words)-1]
	return first.StartTime.AsDuration().Seconds(), last.EndTime.AsDuration().Seconds()
}

// Close releases the API client.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
