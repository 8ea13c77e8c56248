package internal

import (
	"fmt"

	"github.com/go-kit/kit/endpoint"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/ctxhelper"
	"github.com/derWhity/whispqr/internal/models"
)

// EventEndpoints is a collection of endpoints for working with the event service
type EventEndpoints struct {
	Create    endpoint.Endpoint
	List      endpoint.Endpoint
	Get       endpoint.Endpoint
	SetActive endpoint.Endpoint
	Delete    endpoint.Endpoint
	Share     endpoint.Endpoint
	FindCode  endpoint.Endpoint
	Resolve   endpoint.Endpoint
}

// MessageEndpoints is a collection of endpoints for working with the message service
type MessageEndpoints struct {
	List   endpoint.Endpoint
	Add    endpoint.Endpoint
	Delete endpoint.Endpoint
}

// The base for all responses which always contains an "ok" property to show if the call was successful and a
// data element containing the result of the request
type basicResponse struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data,omitempty"`
}

// host returns the identity EnsureHost has already checked for
func host(ctx context.Context) models.Identity {
	return *ctxhelper.Identity(ctx)
}

// -- Events -----------------------------------------------------------------------------------------------------------

// MakeEventEndpoints creates the endpoints needed for using the event service
func MakeEventEndpoints(s EventService) EventEndpoints {
	return EventEndpoints{
		Create:    EnsureHost(MakeCreateEventEndpoint(s)),
		List:      EnsureHost(MakeListEventsEndpoint(s)),
		Get:       MakeGetEventEndpoint(s),
		SetActive: EnsureHost(MakeSetEventActiveEndpoint(s)),
		Delete:    EnsureHost(MakeDeleteEventEndpoint(s)),
		Share:     EnsureHost(MakeShareEventEndpoint(s)),
		FindCode:  MakeFindEventByCodeEndpoint(s),
		Resolve:   MakeResolveEventURLEndpoint(s),
	}
}

// MakeCreateEventEndpoint returns an endpoint calling the Create method on the provided EventService
func MakeCreateEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		draft, ok := request.(models.EventDraft)
		if !ok {
			return nil, fmt.Errorf("illegal event parameter")
		}
		ev, err := s.Create(ctx, host(ctx), draft)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, ev}, nil
	}
}

// MakeListEventsEndpoint returns an endpoint calling the ListByHost method on the provided EventService
func MakeListEventsEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		evts, err := s.ListByHost(ctx, host(ctx))
		if err != nil {
			return nil, err
		}
		return basicResponse{true, evts}, nil
	}
}

// MakeGetEventEndpoint returns an endpoint calling the GetForViewer method on the provided EventService.
// The host of the event gets the full record, everybody else the guest summary.
func MakeGetEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal event ID parameter")
		}
		ev, err := s.GetForViewer(ctx, id, ctxhelper.Identity(ctx))
		if err != nil {
			return nil, err
		}
		return basicResponse{true, ev}, nil
	}
}

// MakeSetEventActiveEndpoint returns an endpoint calling the SetActive method on the provided EventService
func MakeSetEventActiveEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(setActiveRequest)
		if !ok {
			return nil, fmt.Errorf("illegal request parameter")
		}
		if err := s.SetActive(ctx, host(ctx), req.EventID, req.Active); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

// MakeDeleteEventEndpoint returns an endpoint calling the Delete method on the provided EventService
func MakeDeleteEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal event ID parameter")
		}
		if err := s.Delete(ctx, host(ctx), id); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

// MakeShareEventEndpoint returns an endpoint calling the Share method on the provided EventService
func MakeShareEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal event ID parameter")
		}
		info, err := s.Share(ctx, host(ctx), id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, info}, nil
	}
}

// MakeFindEventByCodeEndpoint returns an endpoint calling the FindByCode method on the provided EventService
func MakeFindEventByCodeEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		code, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal code parameter")
		}
		ev, err := s.FindByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, s.Summary(ev)}, nil
	}
}

// MakeResolveEventURLEndpoint returns an endpoint calling the ResolveURL method on the provided EventService
func MakeResolveEventURLEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(resolveRequest)
		if !ok {
			return nil, fmt.Errorf("illegal request parameter")
		}
		ev, err := s.ResolveURL(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, s.Summary(ev)}, nil
	}
}

// -- Messages ---------------------------------------------------------------------------------------------------------

// MakeMessageEndpoints creates the endpoints needed for using the message service
func MakeMessageEndpoints(s MessageService) MessageEndpoints {
	return MessageEndpoints{
		List:   MakeListMessagesEndpoint(s),
		Add:    MakeAddMessageEndpoint(s),
		Delete: EnsureHost(MakeDeleteMessageEndpoint(s)),
	}
}

// MakeListMessagesEndpoint returns an endpoint calling the List method on the provided MessageService
func MakeListMessagesEndpoint(s MessageService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		eventID, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal event ID parameter")
		}
		msgs, err := s.List(ctx, eventID, ctxhelper.Identity(ctx))
		if err != nil {
			return nil, err
		}
		return basicResponse{true, msgs}, nil
	}
}

// MakeAddMessageEndpoint returns an endpoint calling the Add method on the provided MessageService
func MakeAddMessageEndpoint(s MessageService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(addMessageRequest)
		if !ok {
			return nil, fmt.Errorf("illegal message parameter")
		}
		msg, err := s.Add(ctx, req.EventID, req.Draft)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, msg}, nil
	}
}

// MakeDeleteMessageEndpoint returns an endpoint calling the Delete method on the provided MessageService
func MakeDeleteMessageEndpoint(s MessageService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(deleteMessageRequest)
		if !ok {
			return nil, fmt.Errorf("illegal request parameter")
		}
		if err := s.Delete(ctx, host(ctx), req.EventID, req.MessageID); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}
