// Package session orchestrates print jobs: resolve the device profile,
// encode the content, pace it onto the link. Every outcome is reported
// as a Result tagged with the stage that failed.
package session

import (
	"context"
	"fmt"

	"github.com/minithermal/print-engine/pkg/dialect"
	"github.com/minithermal/print-engine/pkg/profile"
	"github.com/minithermal/print-engine/pkg/transport"
)

// DefaultFeedLines is appended after the content so the printed tail
// clears the tear bar.
const DefaultFeedLines = 12

// Stage names a step of the print pipeline.
type Stage int

const (
	StageNone Stage = iota
	StageResolve
	StageEncode
	StageSend
)

// String returns a short tag for logs and error messages.
func (s Stage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageResolve:
		return "resolve"
	case StageEncode:
		return "encode"
	case StageSend:
		return "send"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Result is the outcome of one print job. On failure, FailedStage names
// the first pipeline step that broke and Err holds its error; BytesSent
// counts what the link accepted either way.
type Result struct {
	Success     bool
	BytesSent   int
	FailedStage Stage
	Err         error
}

// Request describes one print job.
type Request struct {
	// Content is what to print.
	Content dialect.Content
	// Model pins the device model. When set it must name a known
	// model; discovery hints are ignored.
	Model string
	// DeviceName is the advertised name seen during discovery.
	DeviceName string
	// DeviceAddress is the device MAC seen during discovery.
	DeviceAddress string
	// Mode overrides the content's natural parameter set. ModeAuto
	// keeps it.
	Mode dialect.Mode
	// FeedLines is the blank paper fed after the content. Zero applies
	// the engine default, negative feeds nothing.
	FeedLines int
	// Renderer rasterizes text for this job. Nil uses the engine's.
	Renderer dialect.TextRenderer
}

// Config assembles an Engine.
type Config struct {
	// Registry resolves models. Nil uses the embedded table.
	Registry *profile.Registry
	// Renderer rasterizes text jobs. Nil means text jobs must carry
	// their own renderer.
	Renderer dialect.TextRenderer
	// Logger receives pipeline diagnostics. Nil discards them.
	Logger transport.Logger
	// FeedLines is the default blank paper fed after content. Zero
	// means DefaultFeedLines, negative means none.
	FeedLines int
}

// Engine runs print jobs against a profile registry.
type Engine struct {
	registry  *profile.Registry
	resolver  *profile.Resolver
	renderer  dialect.TextRenderer
	logger    transport.Logger
	feedLines int
}

// NewEngine builds an engine from the config.
func NewEngine(cfg Config) *Engine {
	reg := cfg.Registry
	if reg == nil {
		reg = profile.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	feed := cfg.FeedLines
	if feed == 0 {
		feed = DefaultFeedLines
	} else if feed < 0 {
		feed = 0
	}

	return &Engine{
		registry:  reg,
		resolver:  profile.NewResolver(reg),
		renderer:  cfg.Renderer,
		logger:    logger,
		feedLines: feed,
	}
}

// Registry exposes the engine's profile table.
func (e *Engine) Registry() *profile.Registry { return e.registry }

// deviceIdentifier is implemented by handles that learned the device's
// identity while connecting, such as the BLE link.
type deviceIdentifier interface {
	DiscoveredName() string
	DiscoveredAddress() string
}

// PrintOnce runs one job over the handle and closes it on every path,
// success or failure. The handle is unusable afterwards.
func (e *Engine) PrintOnce(ctx context.Context, handle transport.Handle, req Request) Result {
	defer func() {
		if err := handle.Close(); err != nil {
			e.logger.Warnf("failed to close link: %v", err)
		}
	}()

	if req.DeviceName == "" && req.DeviceAddress == "" {
		if id, ok := handle.(deviceIdentifier); ok {
			req.DeviceName = id.DiscoveredName()
			req.DeviceAddress = id.DiscoveredAddress()
		}
	}

	match, err := e.resolver.ResolveDevice(req.Model, req.DeviceName, req.DeviceAddress)
	if err != nil {
		e.logger.Errorf("model resolution failed: %v", err)
		return Result{FailedStage: StageResolve, Err: err}
	}
	prof := match.Profile
	e.logger.Infof("resolved model %s via %s", prof.ModelID, match.Source)

	stream, err := e.encode(req, prof)
	if err != nil {
		e.logger.Errorf("encoding failed for %s: %v", prof.ModelID, err)
		return Result{FailedStage: StageEncode, Err: err}
	}
	e.logger.Debugf("encoded %d bytes for %s", len(stream), prof.ModelID)

	pacer := transport.NewPacer(prof.ChunkSizeBytes, prof.InterChunkDelay())
	pacer.Logger = e.logger
	sent, err := pacer.Send(ctx, handle, stream)
	if err != nil {
		e.logger.Errorf("send failed for %s: %v", prof.ModelID, err)
		return Result{BytesSent: sent, FailedStage: StageSend, Err: err}
	}

	e.logger.Infof("printed %d bytes on %s", sent, prof.ModelID)
	return Result{Success: true, BytesSent: sent}
}

func (e *Engine) encode(req Request, prof profile.DeviceProfile) (dialect.EncodedStream, error) {
	renderer := req.Renderer
	if renderer == nil {
		renderer = e.renderer
	}

	feed := req.FeedLines
	if feed == 0 {
		feed = e.feedLines
	} else if feed < 0 {
		feed = 0
	}

	return dialect.Encode(req.Content, prof, dialect.Options{
		ModeOverride: req.Mode,
		Renderer:     renderer,
		FeedLines:    feed,
	})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
