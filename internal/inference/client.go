package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ErrorKind classifies a failed inference call.
type ErrorKind string

const (
	// KindNetwork covers transport failures and remote-side errors.
	KindNetwork ErrorKind = "network"
	// KindInvalidResponse means the service answered with something we
	// could not turn into a Result.
	KindInvalidResponse ErrorKind = "invalid_response"
	// KindUnauthenticated means credentials are missing or rejected.
	KindUnauthenticated ErrorKind = "unauthenticated"
)

// Error is the failure surface of the inference client. Callers decide
// the retry policy; nothing here retries.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("inference: %s", e.Kind)
	}
	return fmt.Sprintf("inference: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is what one capture cycle gets back from the service: the
// transcript plus, when the utterance mentioned one, an absolute future
// timestamp resolved against the reference time of the call.
type Result struct {
	Text         string
	DetectedDate *time.Time
}

// Client wraps the OpenAI SDK for audio transcription and reminder-date
// extraction.
type Client struct {
	client    *openai.Client
	chatModel openai.ChatModel
}

// New returns an inference client. When apiKey is empty the client is
// created anyway and every call fails with KindUnauthenticated.
func New(apiKey string) *Client {
	if apiKey == "" {
		return &Client{}
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		client:    &client,
		chatModel: openai.ChatModelGPT4oMini,
	}
}

const extractionSystemPrompt = "You process transcribed voice notes for a note-taking app. " +
	"The current local time is %s. " +
	"Reply with only a JSON object of the form {\"text\": \"...\", \"detectedDate\": \"...\"}. " +
	"\"text\" is the cleaned-up transcript. " +
	"\"detectedDate\" is an ISO-8601 timestamp when the note asks to be reminded at a specific moment " +
	"(resolve relative expressions like \"tomorrow at 5\" against the current time, always strictly in the future), " +
	"or null when no date is mentioned."

// Transcribe sends the recorded audio to the service and returns the
// transcript with an optional detected reminder date. referenceTime is
// the caller's wall clock; relative date expressions resolve against it.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mediaType string, referenceTime time.Time) (Result, error) {
	if len(audio) == 0 {
		return Result{}, fmt.Errorf("audio payload cannot be empty")
	}
	if mediaType == "" {
		return Result{}, fmt.Errorf("media type cannot be empty")
	}
	if c.client == nil {
		return Result{}, &Error{Kind: KindUnauthenticated, Err: errors.New("no API key configured")}
	}

	text, err := c.transcribeAudio(ctx, audio, mediaType)
	if err != nil {
		return Result{}, err
	}

	raw, err := c.extract(ctx, text, referenceTime)
	if err != nil {
		return Result{}, err
	}

	result, err := parseExtraction(raw, referenceTime)
	if err != nil {
		return Result{}, err
	}
	if result.Text == "" {
		result.Text = text
	}
	return result, nil
}

func (c *Client) transcribeAudio(ctx context.Context, audio []byte, mediaType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := c.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModelWhisper1,
		File:  openai.File(bytes.NewReader(audio), filenameForMediaType(mediaType), mediaType),
	})
	if err != nil {
		return "", classify(err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (c *Client) extract(ctx context.Context, transcript string, referenceTime time.Time) (string, error) {
	req := openai.ChatCompletionNewParams{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(fmt.Sprintf(extractionSystemPrompt, referenceTime.Format(time.RFC3339))),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(transcript),
					},
				},
			},
		},
		Temperature:         openai.Float(0.0),
		MaxCompletionTokens: openai.Int(300),
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindInvalidResponse, Err: errors.New("no completion received")}
	}
	return resp.Choices[0].Message.Content, nil
}

// parseExtraction decodes the model's JSON answer. A detected date that
// does not parse, or is not strictly after the reference time, is
// dropped rather than stored as a perpetually overdue reminder.
func parseExtraction(raw string, referenceTime time.Time) (Result, error) {
	var payload struct {
		Text         string  `json:"text"`
		DetectedDate *string `json:"detectedDate"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		return Result{}, &Error{Kind: KindInvalidResponse, Err: fmt.Errorf("decode extraction %q: %w", raw, err)}
	}

	result := Result{Text: strings.TrimSpace(payload.Text)}
	if payload.DetectedDate == nil || strings.TrimSpace(*payload.DetectedDate) == "" {
		return result, nil
	}

	detected, ok := parseTimestamp(strings.TrimSpace(*payload.DetectedDate), referenceTime.Location())
	if !ok || !detected.After(referenceTime) {
		return result, nil
	}
	result.DetectedDate = &detected
	return result, nil
}

func parseTimestamp(value string, loc *time.Location) (time.Time, bool) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, true
	}
	// The model occasionally omits the offset; read those as local time.
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func filenameForMediaType(mediaType string) string {
	base := mediaType
	if i := strings.Index(base, ";"); i >= 0 {
		base = base[:i]
	}
	switch strings.TrimSpace(strings.ToLower(base)) {
	case "audio/ogg":
		return "voice.ogg"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "voice.m4a"
	case "audio/mpeg", "audio/mp3":
		return "voice.mp3"
	case "audio/wav", "audio/x-wav":
		return "voice.wav"
	default:
		return "voice.webm"
	}
}

func classify(err error) *Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 401 || apiErr.StatusCode == 403 {
			return &Error{Kind: KindUnauthenticated, Err: err}
		}
	}
	return &Error{Kind: KindNetwork, Err: err}
}
