package mapapi

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/libya-atlas/internal/render"
	"github.com/signalsfoundry/libya-atlas/internal/view/state"
)

// Field names of the request and response structs.
const (
	fieldSessionID = "session_id"
	fieldWidth     = "width"
	fieldHeight    = "height"
	fieldEvent     = "event"
	fieldScene     = "scene"
)

// SceneToStruct encodes a scene with its JSON field names.
func SceneToStruct(sc render.Scene) (*structpb.Struct, error) {
	return toStruct(sc)
}

// SceneFromStruct decodes a scene produced by SceneToStruct.
func SceneFromStruct(s *structpb.Struct) (render.Scene, error) {
	var sc render.Scene
	if err := fromStruct(s, &sc); err != nil {
		return render.Scene{}, err
	}
	return sc, nil
}

// EventFromStruct decodes an event using its JSON field names.
func EventFromStruct(s *structpb.Struct) (state.Event, error) {
	if s == nil {
		return state.Event{}, fmt.Errorf("%w: event is required", ErrInvalidRequest)
	}
	var ev state.Event
	if err := fromStruct(s, &ev); err != nil {
		return state.Event{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return ev, nil
}

// EventToStruct encodes an event for a Dispatch request.
func EventToStruct(ev state.Event) (*structpb.Struct, error) {
	return toStruct(ev)
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, out any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func stringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}

func numberField(s *structpb.Struct, key string) float64 {
	if s == nil {
		return 0
	}
	return s.GetFields()[key].GetNumberValue()
}

func structField(s *structpb.Struct, key string) *structpb.Struct {
	if s == nil {
		return nil
	}
	return s.GetFields()[key].GetStructValue()
}
