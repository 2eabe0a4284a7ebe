package analysis

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/dfeirstein/the-skin-lab/internal/domain/eventbus"
	"github.com/dfeirstein/the-skin-lab/internal/domain/image"
	platformerrors "github.com/dfeirstein/the-skin-lab/internal/platform/errors"
	"github.com/dfeirstein/the-skin-lab/internal/platform/logging"
	"github.com/dfeirstein/the-skin-lab/internal/platform/observability"
)

// DefaultMaxTokens caps the model's completion length.
const DefaultMaxTokens = 4000

// ModelRequest is a single multimodal prompt: one instruction and one inline image.
type ModelRequest struct {
	Instruction string
	ImageURL    string
	MaxTokens   int
}

// FragmentStream yields text fragments in model order. Recv returns io.EOF
// after the last fragment; any other error means the stream broke.
type FragmentStream interface {
	Recv() (string, error)
	Close() error
}

// Streamer opens a streaming completion against a vision model.
type Streamer interface {
	Stream(ctx context.Context, req ModelRequest) (FragmentStream, error)
}

// Encoder turns an upload into its inline form.
type Encoder interface {
	Process(ctx context.Context, upload image.Upload) (*image.Encoded, error)
}

// Request is one analysis.
type Request struct {
	ID     string
	Upload *image.Upload
}

type Options struct {
	Streamer  Streamer
	Encoder   Encoder
	Extractor Extractor
	Publisher eventbus.Publisher
	MaxTokens int
	Provider  string
	Model     string
	Logger    *logging.Logger
}

// Relay runs one model stream per request and forwards it as events.
type Relay struct {
	streamer  Streamer
	encoder   Encoder
	extract   Extractor
	publisher eventbus.Publisher
	maxTokens int
	provider  string
	model     string
	logger    *logging.Logger
}

func NewRelay(opts Options) (*Relay, error) {
	if opts.Streamer == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "analysis.new", "streamer is required")
	}
	if opts.Encoder == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "analysis.new", "encoder is required")
	}
	r := &Relay{
		streamer:  opts.Streamer,
		encoder:   opts.Encoder,
		extract:   opts.Extractor,
		publisher: opts.Publisher,
		maxTokens: opts.MaxTokens,
		provider:  opts.Provider,
		model:     opts.Model,
		logger:    opts.Logger,
	}
	if r.extract == nil {
		r.extract = ExtractSpan
	}
	if r.maxTokens <= 0 {
		r.maxTokens = DefaultMaxTokens
	}
	return r, nil
}

func (r *Relay) Provider() string { return r.provider }
func (r *Relay) Model() string    { return r.model }
func (r *Relay) MaxTokens() int   { return r.maxTokens }

// Analyze encodes the upload and starts the model stream. Errors returned
// here happen before any event and map to a plain HTTP status. Once a
// channel is returned every outcome arrives on it: zero or more content
// events followed by exactly one terminal event, then close.
//
// Cancelling ctx stops the relay; the channel is closed without a terminal
// event in that case.
func (r *Relay) Analyze(ctx context.Context, req Request) (<-chan Event, error) {
	const op = "analysis.analyze"
	if req.Upload == nil {
		return nil, platformerrors.New(platformerrors.KindInvalidInput, op, MsgNoImage)
	}

	encoded, err := r.encoder.Process(ctx, *req.Upload)
	if err != nil {
		r.publish(eventbus.EventAnalysisRejected, eventbus.AnalysisEventData{
			RequestID: req.ID,
			MediaType: req.Upload.MediaType,
			Result:    observability.ResultRejected,
			Error:     err.Error(),
		})
		return nil, err
	}

	events := make(chan Event)
	go r.run(ctx, req.ID, encoded, events)
	return events, nil
}

func (r *Relay) run(ctx context.Context, requestID string, encoded *image.Encoded, events chan<- Event) {
	defer close(events)

	ctx, endSpan := observability.StartSpan(ctx, "analysis", "relay")
	start := time.Now()
	data := eventbus.AnalysisEventData{
		RequestID: requestID,
		Provider:  r.provider,
		Model:     r.model,
		MediaType: encoded.MediaType,
		Bytes:     int(encoded.Size),
	}
	r.publish(eventbus.EventAnalysisStarted, data)

	finish := func(result string, err error) {
		data.Result = result
		data.Duration = time.Since(start)
		if err != nil {
			data.Error = err.Error()
			r.publish(eventbus.EventAnalysisFailed, data)
		} else {
			r.publish(eventbus.EventAnalysisCompleted, data)
		}
		endSpan(err)
	}

	send := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	stream, err := r.streamer.Stream(ctx, ModelRequest{
		Instruction: Instruction,
		ImageURL:    encoded.DataURL(),
		MaxTokens:   r.maxTokens,
	})
	if err != nil {
		err = platformerrors.Wrap(platformerrors.KindUpstream, "analysis.stream", MsgAnalyzeFailed, err)
		r.logger.ErrorContext(ctx, "[ANALYSIS] open stream failed", "error", err.Error())
		send(Event{Error: MsgAnalyzeFailed})
		finish(observability.ResultUpstreamFailure, err)
		return
	}
	defer stream.Close()

	var full strings.Builder
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				finish(observability.ResultCancelled, ctx.Err())
				return
			}
			err = platformerrors.Wrap(platformerrors.KindUpstream, "analysis.stream", MsgAnalyzeFailed, err)
			r.logger.ErrorContext(ctx, "[ANALYSIS] stream broke", "error", err.Error(), "fragments", data.Fragments)
			send(Event{Error: MsgAnalyzeFailed})
			finish(observability.ResultUpstreamFailure, err)
			return
		}
		if fragment == "" {
			continue
		}
		full.WriteString(fragment)
		data.Fragments++
		if !send(Event{Content: fragment}) {
			finish(observability.ResultCancelled, ctx.Err())
			return
		}
	}

	analysis, err := r.extract(full.String())
	if err != nil {
		message := platformerrors.PublicMessage(err, MsgParseFailed)
		result := observability.ResultParseFailure
		if message == MsgNoJSON {
			result = observability.ResultNoJSON
		}
		r.logger.WarnContext(ctx, "[ANALYSIS] extract failed", "error", err.Error(), "length", full.Len())
		send(Event{Error: message})
		finish(result, err)
		return
	}

	if !send(Event{Analysis: analysis, Done: true}) {
		finish(observability.ResultCancelled, ctx.Err())
		return
	}
	finish(observability.ResultCompleted, nil)
}

func (r *Relay) publish(topic string, data eventbus.AnalysisEventData) {
	if r.publisher != nil {
		r.publisher.Publish(topic, data)
	}
}
