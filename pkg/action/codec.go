package action

import (
	"encoding/json"
	"fmt"

	mwerrors "github.com/grovetools/mwstate/errors"
	"github.com/grovetools/mwstate/pkg/models"
)

// legacyServiceMethodsKind is an older spelling still emitted by some producers.
const legacyServiceMethodsKind = "RECEIVE_RPC_SERVICES_METHODS"

// wireAction is the flat {type, ...payload} document shape.
type wireAction struct {
	Type      string               `json:"type"`
	Mask      *string              `json:"mask,omitempty"`
	EventData *models.Event        `json:"eventData,omitempty"`
	Services  *[]models.RPCService `json:"services,omitempty"`
	Service   *string              `json:"service,omitempty"`
	Methods   *[]models.RPCMethod  `json:"methods,omitempty"`
}

// Decode parses a single action document. Unrecognized types decode to
// Unknown; known types with missing required fields are rejected.
func Decode(data []byte) (Action, error) {
	var w wireAction
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, mwerrors.Wrap(err, mwerrors.ErrCodeInvalidAction, "failed to parse action")
	}
	if w.Type == "" {
		return nil, mwerrors.InvalidAction("untyped", "missing 'type'")
	}

	switch Kind(w.Type) {
	case KindSubscribeToMask:
		if w.Mask == nil {
			return nil, mwerrors.InvalidAction(w.Type, "missing 'mask'")
		}
		return SubscribeToMask{Mask: *w.Mask}, nil
	case KindUnsubscribeFromMask:
		if w.Mask == nil {
			return nil, mwerrors.InvalidAction(w.Type, "missing 'mask'")
		}
		return UnsubscribeFromMask{Mask: *w.Mask}, nil
	case KindMiddlewareEvent:
		if w.EventData == nil {
			return nil, mwerrors.InvalidAction(w.Type, "missing 'eventData'")
		}
		return MiddlewareEvent{EventData: *w.EventData}, nil
	case KindLogMiddlewareTaskQueue:
		return LogMiddlewareTaskQueue{}, nil
	case KindReceiveRPCServices:
		if w.Services == nil {
			return nil, mwerrors.InvalidAction(w.Type, "missing 'services'")
		}
		return ReceiveRPCServices{Services: *w.Services}, nil
	case KindReceiveRPCServiceMethods, legacyServiceMethodsKind:
		if w.Service == nil {
			return nil, mwerrors.InvalidAction(w.Type, "missing 'service'")
		}
		if w.Methods == nil {
			return nil, mwerrors.InvalidAction(w.Type, "missing 'methods'")
		}
		return ReceiveRPCServiceMethods{Service: *w.Service, Methods: *w.Methods}, nil
	default:
		return Unknown{Type: w.Type, Raw: append([]byte(nil), data...)}, nil
	}
}

// Encode renders a as a flat {type, ...payload} document.
func Encode(a Action) ([]byte, error) {
	w := wireAction{Type: string(a.Kind())}
	switch act := a.(type) {
	case SubscribeToMask:
		w.Mask = &act.Mask
	case UnsubscribeFromMask:
		w.Mask = &act.Mask
	case MiddlewareEvent:
		w.EventData = &act.EventData
	case LogMiddlewareTaskQueue:
	case ReceiveRPCServices:
		services := nonNilServices(act.Services)
		w.Services = &services
	case ReceiveRPCServiceMethods:
		w.Service = &act.Service
		methods := nonNilMethods(act.Methods)
		w.Methods = &methods
	case Unknown:
		if len(act.Raw) > 0 {
			return act.Raw, nil
		}
	default:
		return nil, fmt.Errorf("unsupported action type %T", a)
	}
	return json.Marshal(w)
}

func nonNilServices(s []models.RPCService) []models.RPCService {
	if s == nil {
		return []models.RPCService{}
	}
	return s
}

func nonNilMethods(m []models.RPCMethod) []models.RPCMethod {
	if m == nil {
		return []models.RPCMethod{}
	}
	return m
}
