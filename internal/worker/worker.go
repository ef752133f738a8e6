// Package worker provides a NATS worker that runs pipeline passes on request.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/narration-pipeline/internal/pipeline"
)

const defaultJobTimeout = 30 * time.Minute

// Job names accepted on the trigger subject.
const (
	JobPregenerate = "pregenerate"
	JobVerify      = "verify"
	JobBatch       = "batch"
)

var (
	// ErrUnknownJob indicates a request naming no known job.
	ErrUnknownJob = errors.New("unknown job")
	// ErrLimitRequired indicates a batch request without a positive limit.
	ErrLimitRequired = errors.New("batch job requires a positive limit")
)

// Generator is the part of pipeline.Generator the worker drives.
type Generator interface {
	GenerateWindow(ctx context.Context, leadDays int) pipeline.Result
	GenerateBatch(ctx context.Context, run *pipeline.RunContext, opts pipeline.BatchOptions) pipeline.Result
}

// Verifier is the part of pipeline.Verifier the worker drives.
type Verifier interface {
	Verify(ctx context.Context) pipeline.Report
}

// Runner runs fn unless another pass holds the lock.
type Runner interface {
	TryRun(ctx context.Context, fn func(context.Context)) error
}

// Request is the trigger message body.
type Request struct {
	Job   string `json:"job"`
	Limit int    `json:"limit,omitempty"`
	Force bool   `json:"force,omitempty"`
	// Days overrides the configured lead time of a pregenerate job.
	Days *int `json:"days,omitempty"`
}

// Response is the reply body.
type Response struct {
	Job    string           `json:"job"`
	Result *pipeline.Result `json:"result,omitempty"`
	Report *pipeline.Report `json:"report,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// NatsWorker listens for trigger requests on a NATS subject.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	generator      Generator
	verifier       Verifier
	runner         Runner
	leadDays       int
	jobTimeout     time.Duration
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	generator Generator,
	verifier Verifier,
	runner Runner,
	leadDays int,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		generator:      generator,
		verifier:       verifier,
		runner:         runner,
		leadDays:       leadDays,
		jobTimeout:     defaultJobTimeout,
		log:            log,
	}
}

// SetJobTimeout bounds a single triggered pass.
func (w *NatsWorker) SetJobTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.jobTimeout = timeout
	}
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, func(msg *nats.Msg) {
		w.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for trigger requests on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(parent context.Context, msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(parent, w.jobTimeout)
	defer cancel()

	response := w.dispatch(ctx, msg.Data)
	if response.Error != "" {
		w.log.Error("Trigger request %q failed: %s", response.Job, response.Error)
	}

	err := w.respond(msg, response)
	if err != nil {
		w.log.Error("Failed to reply to trigger request %q: %v", response.Job, err)
	}
}

func (w *NatsWorker) dispatch(ctx context.Context, data []byte) Response {
	request, err := parseRequest(data)
	if err != nil {
		return Response{Job: "", Result: nil, Report: nil, Error: err.Error()}
	}

	response := Response{Job: request.Job, Result: nil, Report: nil, Error: ""}

	var job func(context.Context)

	switch request.Job {
	case JobPregenerate:
		days := w.leadDays
		if request.Days != nil {
			days = *request.Days
		}

		job = func(ctx context.Context) {
			result := w.generator.GenerateWindow(ctx, days)
			response.Result = &result
		}
	case JobBatch:
		if request.Limit <= 0 {
			response.Error = ErrLimitRequired.Error()

			return response
		}

		job = func(ctx context.Context) {
			result := w.generator.GenerateBatch(ctx, pipeline.NewRunContext(), pipeline.BatchOptions{
				Limit: request.Limit,
				Force: request.Force,
			})
			response.Result = &result
		}
	case JobVerify:
		job = func(ctx context.Context) {
			report := w.verifier.Verify(ctx)
			response.Report = &report
		}
	default:
		response.Error = fmt.Sprintf("%v: %q", ErrUnknownJob, request.Job)

		return response
	}

	w.log.Info("Running triggered %s job", request.Job)

	if err := w.runner.TryRun(ctx, job); err != nil {
		response.Error = err.Error()
	}

	return response
}

// respond marshals the response and replies to the requester, if any.
func (w *NatsWorker) respond(msg *nats.Msg, response Response) error {
	if msg.Reply == "" {
		return nil
	}

	replyData, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply: %w", err)
	}

	return nil
}

func parseRequest(data []byte) (Request, error) {
	var request Request

	err := json.Unmarshal(data, &request)
	if err != nil {
		return Request{}, fmt.Errorf("failed to unmarshal trigger request: %w", err)
	}

	return request, nil
}
