package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/hermes/internal/agent"
	"github.com/mohammad-safakhou/hermes/internal/helpers"
	"github.com/mohammad-safakhou/hermes/internal/telemetry"
	"github.com/mohammad-safakhou/hermes/models"
	"github.com/mohammad-safakhou/hermes/session"
)

const DefaultMaxDownloadIterations = 3

// threadPrefix keeps music sessions apart from other conversations sharing the store.
const threadPrefix = "music:"

// SessionKey is the store key of a music thread.
func SessionKey(threadID string) string { return threadPrefix + threadID }

// Instructions is the profile given to the model in both stages.
const Instructions = `You fetch music tracks for the user and follow these rules strictly.
1. Never reveal local file paths, urls, site names, storage details or technical details of the download.
2. On a download request call search_track_candidates once with the track title and, if given, the artist.
3. From the latest candidate list choose exactly one url, the best match, without describing the choice.
4. Call download_track with that url. If it fails, you may pick another url from the same list.
5. Reply "<title> is ready" on success and "this track is not available right now" on failure.
6. To any question about paths or links reply "the service completed normally".`

var tracer = otel.Tracer("hermes/internal/workflow")

// Action runs the model with tools over a history and returns the produced messages.
type Action interface {
	Invoke(ctx context.Context, profile agent.Profile, history []models.Message) ([]models.Message, error)
}

// Result is what a run hands back to the caller.
type Result struct {
	ThreadID   string       `json:"thread_id"`
	Reply      string       `json:"reply"`
	Artifact   string       `json:"artifact,omitempty"`
	Stage      models.Stage `json:"stage"`
	Iterations int          `json:"iterations"`
	Exhausted  bool         `json:"exhausted,omitempty"`
}

// Engine runs the analysis -> download* -> terminated graph for one thread at a time.
type Engine struct {
	store         session.Store
	action        Action
	analysis      agent.Profile
	download      agent.Profile
	downloadTool  string
	markers       Markers
	maxIterations int
	locks         *helpers.KeyedMutex
	logger        *zap.Logger
	metrics       *telemetry.Metrics
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithMaxDownloadIterations bounds the download loop.
func WithMaxDownloadIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

func WithMarkers(m Markers) Option {
	return func(e *Engine) { e.markers = m }
}

// WithDownloadTool names the tool whose results carry the artifact path.
func WithDownloadTool(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.downloadTool = name
		}
	}
}

func New(store session.Store, action Action, analysis, download agent.Profile, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("workflow requires a checkpoint store")
	}
	if action == nil {
		return nil, errors.New("workflow requires a model action")
	}
	e := &Engine{
		store:         store,
		action:        action,
		analysis:      analysis,
		download:      download,
		downloadTool:  "download_track",
		maxIterations: DefaultMaxDownloadIterations,
		locks:         helpers.NewKeyedMutex(),
		logger:        zap.NewNop(),
		markers: Markers{
			CandidatesFound: "candidate links found",
			SearchDomain:    "https://www.bilibili.com/video/",
			DownloadSuccess: "all downloads succeeded",
			SavedPath:       "saved local path:",
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("workflow")
	return e, nil
}

// Run appends text to the thread and drives the graph to termination. Only
// checkpoint failures are returned as errors; model and tool failures end
// the run with a natural-language reply.
func (e *Engine) Run(ctx context.Context, threadID, text string) (Result, error) {
	if threadID == "" {
		return Result{}, models.ErrThreadRequired
	}
	unlock := e.locks.Lock(threadID)
	defer unlock()

	ctx, span := tracer.Start(ctx, "workflow.run")
	span.SetAttributes(attribute.String("workflow.thread_id", threadID))
	defer span.End()

	sess, err := e.store.Load(ctx, SessionKey(threadID))
	if err != nil {
		e.metrics.WorkflowRun("store_error")
		return Result{}, fmt.Errorf("load session %s: %w", threadID, err)
	}
	if sess.Terminated || sess.Stage == models.StageTerminated {
		sess.Stage = models.StageAnalysis
		sess.Terminated = false
	}

	sess.Append(models.UserMessage(text))
	run := &runState{engine: e, sess: sess}

	outcome, err := run.drive(ctx)
	if err != nil {
		e.metrics.WorkflowRun("store_error")
		span.RecordError(err)
		return Result{}, err
	}
	e.metrics.WorkflowRun(outcome)
	e.metrics.DownloadIterations(run.iterations)

	msgs := sess.Messages
	res := Result{
		ThreadID:   threadID,
		Reply:      lastReply(msgs),
		Stage:      sess.Stage,
		Iterations: run.iterations,
		Exhausted:  outcome == "exhausted",
	}
	if path, ok := ExtractArtifact(msgs, e.downloadTool, e.markers.SavedPath); ok {
		res.Artifact = path
	}
	e.logger.Info("workflow finished",
		zap.String("thread_id", threadID),
		zap.String("outcome", outcome),
		zap.Int("iterations", run.iterations),
		zap.Bool("artifact", res.Artifact != ""))
	return res, nil
}

type runState struct {
	engine     *Engine
	sess       *models.WorkflowSession
	iterations int
}

func (r *runState) drive(ctx context.Context) (string, error) {
	e := r.engine
	shouldDownload := e.markers.ShouldDownload()
	shouldEnd := e.markers.ShouldEnd()

	for {
		switch r.sess.Stage {
		case models.StageAnalysis:
			if ok, err := r.step(ctx, e.analysis); err != nil || !ok {
				return "model_error", err
			}
			if shouldDownload(r.sess.Messages) {
				r.sess.Stage = models.StageDownload
				if err := r.save(ctx); err != nil {
					return "", err
				}
				continue
			}
			return "no_candidates", r.terminate(ctx)

		case models.StageDownload:
			if r.iterations >= e.maxIterations {
				e.logger.Warn("download iterations exhausted",
					zap.String("thread_id", r.sess.ThreadID), zap.Int("max", e.maxIterations))
				r.sess.Append(models.AssistantMessage(fmt.Sprintf(
					"this track is not available right now (gave up after %d download attempts)", e.maxIterations)))
				return "exhausted", r.terminate(ctx)
			}
			r.iterations++
			if ok, err := r.step(ctx, e.download); err != nil || !ok {
				return "model_error", err
			}
			if shouldEnd(r.sess.Messages) {
				return "completed", r.terminate(ctx)
			}
			if err := r.save(ctx); err != nil {
				return "", err
			}

		default:
			return "", fmt.Errorf("session %s in unknown stage %q", r.sess.ThreadID, r.sess.Stage)
		}
	}
}

// step executes one stage action and appends its messages. It reports false
// when the model failed, after terminating the session with a failure reply.
func (r *runState) step(ctx context.Context, profile agent.Profile) (bool, error) {
	e := r.engine
	stage := r.sess.Stage
	ctx, span := tracer.Start(ctx, "workflow.stage")
	span.SetAttributes(attribute.String("workflow.stage", string(stage)))
	defer span.End()

	e.metrics.StageExecuted(string(stage))
	history := append([]models.Message(nil), r.sess.Messages...)
	produced, err := e.action.Invoke(ctx, profile, history)
	r.sess.Append(produced...)
	if err != nil {
		span.RecordError(err)
		e.logger.Error("stage action failed",
			zap.String("thread_id", r.sess.ThreadID), zap.String("stage", string(stage)), zap.Error(err))
		r.sess.Append(models.AssistantMessage("sorry, the assistant is unavailable right now, please try again later"))
		return false, r.terminate(ctx)
	}
	return true, nil
}

func (r *runState) terminate(ctx context.Context) error {
	r.sess.Stage = models.StageTerminated
	r.sess.Terminated = true
	return r.save(ctx)
}

func (r *runState) save(ctx context.Context) error {
	if err := r.engine.store.Save(ctx, r.sess); err != nil {
		return fmt.Errorf("save session %s: %w", r.sess.ThreadID, err)
	}
	return nil
}
