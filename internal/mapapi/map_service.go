package mapapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/libya-atlas/internal/logging"
	"github.com/signalsfoundry/libya-atlas/internal/render"
	"github.com/signalsfoundry/libya-atlas/internal/view/state"
)

// MapService implements atlas.v1.MapService on top of a session registry.
type MapService struct {
	registry *state.Registry
	source   render.Source
	log      logging.Logger

	defaultWidth  float64
	defaultHeight float64
}

// Option configures a MapService.
type Option func(*MapService)

// WithDefaultSurface sets the surface size used when CreateSession omits it.
func WithDefaultSurface(width, height float64) Option {
	return func(s *MapService) {
		s.defaultWidth = width
		s.defaultHeight = height
	}
}

// NewMapService wires the service to the session registry and the store
// scenes are drawn from.
func NewMapService(registry *state.Registry, source render.Source, log logging.Logger, opts ...Option) *MapService {
	if log == nil {
		log = logging.Noop()
	}
	s := &MapService{
		registry:      registry,
		source:        source,
		log:           log,
		defaultWidth:  1000,
		defaultHeight: 700,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MapService) ensureReady() error {
	if s == nil || s.registry == nil || s.source == nil {
		return status.Error(codes.FailedPrecondition, "map service is not initialised")
	}
	return nil
}

func (s *MapService) CreateSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	width, height := numberField(in, fieldWidth), numberField(in, fieldHeight)
	if width == 0 && height == 0 {
		width, height = s.defaultWidth, s.defaultHeight
	}

	sess, err := s.registry.Create(ctx, width, height)
	if err != nil {
		return nil, ToStatusError(err)
	}
	scene, err := SceneToStruct(render.Build(sess.Snapshot(), s.source))
	if err != nil {
		return nil, ToStatusError(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSessionID: structpb.NewStringValue(sess.ID()),
		fieldScene:     structpb.NewStructValue(scene),
	}}, nil
}

func (s *MapService) Dispatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.session(in)
	if err != nil {
		return nil, err
	}
	ev, err := EventFromStruct(structField(in, fieldEvent))
	if err != nil {
		return nil, ToStatusError(err)
	}
	if ev.Type == state.EventFrame {
		// Frames come from the server clock.
		return nil, ToStatusError(fmt.Errorf("%w: frame events are not accepted from clients", ErrInvalidRequest))
	}
	// Transitions are timed by the server clock only.
	ev.At = time.Time{}

	vs, err := sess.Apply(ctx, ev)
	if err != nil {
		return nil, ToStatusError(err)
	}
	out, err := SceneToStruct(render.Build(vs, s.source))
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

func (s *MapService) GetScene(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.session(in)
	if err != nil {
		return nil, err
	}
	out, err := SceneToStruct(render.Build(sess.Snapshot(), s.source))
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

func (s *MapService) CloseSession(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	id := stringField(in, fieldSessionID)
	if id == "" {
		return nil, ToStatusError(fmt.Errorf("%w: %s is required", ErrInvalidRequest, fieldSessionID))
	}
	if err := s.registry.Close(id); err != nil {
		return nil, ToStatusError(err)
	}
	logging.FromContext(ctx, s.log).Info(ctx, "view session closed over rpc", logging.String("session_id", id))
	return &emptypb.Empty{}, nil
}

func (s *MapService) session(in *structpb.Struct) (*state.Session, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	id := stringField(in, fieldSessionID)
	if id == "" {
		return nil, ToStatusError(fmt.Errorf("%w: %s is required", ErrInvalidRequest, fieldSessionID))
	}
	sess, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, state.ErrSessionNotFound) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return nil, ToStatusError(err)
	}
	return sess, nil
}
