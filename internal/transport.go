package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/ctxhelper"
	"github.com/derWhity/whispqr/internal/log"
	"github.com/derWhity/whispqr/internal/models"
)

const (
	apiBasePath = "/api"
)

// TokenVerifier checks the identity tokens sent by hosts
type TokenVerifier interface {
	Verify(token string) (*models.Identity, error)
}

// Defines an error that defines the HTTP status that should be returned
type httpStatuser interface {
	Status() int
}

// Defines an error that returns a machine-readable error code
type errorCoder interface {
	ErrorCode() string
}

// Defines an error that contains a data field with additional information
type dataBearer interface {
	Data() interface{}
}

type errorResponse struct {
	basicResponse
	// The error code
	Error   string      `json:"error"`
	Message string      `json:"errorMessage"`
	Details interface{} `json:"errorDetails,omitempty"`
}

// MakeHTTPHandler creates the main HTTP handler for the whispqr service.
// The verifier may be nil - all callers are guests then.
func MakeHTTPHandler(
	es EventService,
	ms MessageService,
	verifier TokenVerifier,
	logger *logrus.Entry,
) http.Handler {
	r := mux.NewRouter()

	before := []httptransport.RequestFunc{
		makeContextInjector(logger),
		makeIdentityDecoder(verifier),
	}
	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(encodeError),
		httptransport.ServerBefore(before...),
	}

	// -- Event Service --------------------------------
	{
		evEp := MakeEventEndpoints(es)

		// Create
		r.Methods(http.MethodPost).Path(apiBasePath + "/events").Handler(httptransport.NewServer(
			evEp.Create,
			decodeEventDraft,
			encodeJSONResponse,
			options...,
		))

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/events").Handler(httptransport.NewServer(
			evEp.List,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/{id}").Handler(httptransport.NewServer(
			evEp.Get,
			decodeEventIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// SetActive
		r.Methods(http.MethodPut).Path(apiBasePath + "/events/{id}/active").Handler(httptransport.NewServer(
			evEp.SetActive,
			decodeSetActiveRequest,
			encodeJSONResponse,
			options...,
		))

		// Delete
		r.Methods(http.MethodDelete).Path(apiBasePath + "/events/{id}").Handler(httptransport.NewServer(
			evEp.Delete,
			decodeEventIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Share
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/{id}/share").Handler(httptransport.NewServer(
			evEp.Share,
			decodeEventIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// FindByCode
		r.Methods(http.MethodGet).Path(apiBasePath + "/codes/{code}").Handler(httptransport.NewServer(
			evEp.FindCode,
			decodeCodeFromPath,
			encodeJSONResponse,
			options...,
		))

		// ResolveURL
		r.Methods(http.MethodPost).Path(apiBasePath + "/resolve").Handler(httptransport.NewServer(
			evEp.Resolve,
			decodeResolveRequest,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Message Service ------------------------------
	{
		msgEp := MakeMessageEndpoints(ms)

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/{id}/messages").Handler(httptransport.NewServer(
			msgEp.List,
			decodeEventIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Add
		r.Methods(http.MethodPost).Path(apiBasePath + "/events/{id}/messages").Handler(httptransport.NewServer(
			msgEp.Add,
			decodeAddMessageRequest,
			encodeJSONResponse,
			options...,
		))

		// Delete
		r.Methods(http.MethodDelete).Path(apiBasePath + "/events/{id}/messages/{messageId}").Handler(httptransport.NewServer(
			msgEp.Delete,
			decodeDeleteMessageRequest,
			encodeJSONResponse,
			options...,
		))

		// Live feed
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/{id}/feed").Handler(makeFeedHandler(ms, before))
	}

	// Simple alive answer for checking if HTTP can be reached
	r.Methods(http.MethodGet).Path("/alive").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		data := map[string]bool{"ok": true}
		json.NewEncoder(w).Encode(data)
	})

	return r
}

// decodeNilRequest just does nothing with the request. It is used for endpoints that don't need anything to be passed
func decodeNilRequest(_ context.Context, r *http.Request) (request interface{}, err error) {
	return nil, nil
}

// decodeJSONBody decodes the request's JSON body into target
func decodeJSONBody(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	return nil
}

// getStringFromPath is a helper function that gets a non-empty string from the given path variable
func getStringFromPath(varname string, r *http.Request) (string, error) {
	str := strings.TrimSpace(mux.Vars(r)[varname])
	if str == "" {
		return "", MakeError(
			http.StatusBadRequest,
			ErrCodeRequiredFieldMissing,
			fmt.Sprintf("Missing value for '%s'", varname),
		)
	}
	return str, nil
}

// Decodes an event ID from the "id" path variable provided by GoRilla
func decodeEventIDFromPath(_ context.Context, r *http.Request) (interface{}, error) {
	return getStringFromPath("id", r)
}

// Decodes a typed string code from the "code" path variable
func decodeCodeFromPath(_ context.Context, r *http.Request) (interface{}, error) {
	return getStringFromPath("code", r)
}

// decodeEventDraft tries to load the data of a new event from the provided HTTP request's body
func decodeEventDraft(_ context.Context, r *http.Request) (interface{}, error) {
	var draft models.EventDraft
	if err := decodeJSONBody(r, &draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// decodeSetActiveRequest reads the new active flag from the body and the event ID from the path
func decodeSetActiveRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req struct {
		Active *bool `json:"isActive"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	if req.Active == nil {
		return nil, MakeError(http.StatusBadRequest, ErrCodeRequiredFieldMissing, "Missing value for 'isActive'")
	}
	id, err := getStringFromPath("id", r)
	if err != nil {
		return nil, err
	}
	return setActiveRequest{EventID: id, Active: *req.Active}, nil
}

// decodeResolveRequest reads the scanned URL from the request's body
func decodeResolveRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req resolveRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, MakeError(http.StatusBadRequest, ErrCodeRequiredFieldMissing, "Missing value for 'url'")
	}
	return req, nil
}

// decodeAddMessageRequest reads a new message from the body and the event ID from the path
func decodeAddMessageRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var draft models.MessageDraft
	if err := decodeJSONBody(r, &draft); err != nil {
		return nil, err
	}
	id, err := getStringFromPath("id", r)
	if err != nil {
		return nil, err
	}
	return addMessageRequest{EventID: id, Draft: draft}, nil
}

// decodeDeleteMessageRequest reads the event and message IDs from the path
func decodeDeleteMessageRequest(_ context.Context, r *http.Request) (interface{}, error) {
	eventID, err := getStringFromPath("id", r)
	if err != nil {
		return nil, err
	}
	msgID, err := getStringFromPath("messageId", r)
	if err != nil {
		return nil, err
	}
	return deleteMessageRequest{EventID: eventID, MessageID: msgID}, nil
}

// Encodes a typical JSON response
func encodeJSONResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(response)
}

// makeErrorResponse builds the response body for the given error
func makeErrorResponse(err error) errorResponse {
	ret := errorResponse{
		basicResponse: basicResponse{false, nil},
		Message:       err.Error(),
		Error:         ErrCodeUnknown,
	}
	if cd, ok := err.(errorCoder); ok {
		ret.Error = cd.ErrorCode()
	}
	if db, ok := err.(dataBearer); ok {
		if data := db.Data(); data != nil {
			if err, ok := data.(error); ok {
				ret.Details = err.Error()
			} else {
				ret.Details = data
			}
		}
	}
	return ret
}

// Builds an error response based on the incoming error
func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	if err == nil {
		panic("encodeError with nil error")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if st, ok := err.(httpStatuser); ok {
		w.WriteHeader(st.Status())
	} else {
		w.WriteHeader(http.StatusInternalServerError)
	}
	ret := makeErrorResponse(err)
	json.NewEncoder(w).Encode(&ret)
}

// makeIdentityDecoder returns a function that is used in every HTTP call to verify the host identity, if a bearer
// token is sent by the client. Calls without a valid token are handled as guest calls.
func makeIdentityDecoder(v TokenVerifier) httptransport.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if v == nil || !strings.HasPrefix(auth, "Bearer ") {
			return ctx
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		logger := ctxhelper.Logger(ctx)
		id, err := v.Verify(token)
		if err != nil {
			logger.WithError(err).Warn("Rejected identity token - handling the call as guest")
			return ctx
		}
		ctx = ctxhelper.WithIdentity(ctx, *id)
		return ctxhelper.WithLogger(ctx, logger.WithField(log.FldHost, id.HostID))
	}
}

func makeContextInjector(logger *logrus.Entry) httptransport.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		return ctxhelper.WithLogger(ctx, logger.WithField(log.FldPath, r.URL.Path))
	}
}
