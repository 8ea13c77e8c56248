package internal

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/codec"
	"github.com/derWhity/whispqr/internal/expiry"
	"github.com/derWhity/whispqr/internal/feed"
	"github.com/derWhity/whispqr/internal/log"
	"github.com/derWhity/whispqr/internal/models"
	"github.com/derWhity/whispqr/internal/repos"
)

// How often a new event ID is drawn when its string code is already held by a live event
const maxCodeAttempts = 8

// LiveFeed is the part of the feed hub the services use
type LiveFeed interface {
	// Notify announces a change of the messages (or the state) of an event
	Notify(ctx context.Context, eventID string)
	// Subscribe opens a live feed on the messages of an event
	Subscribe(ctx context.Context, eventID string, query feed.QueryFunc, onUpdate feed.UpdateFunc) (*feed.Subscription, error)
}

// EventService provides service functions for working with events
type EventService interface {
	// Create creates a new event for the given host
	Create(ctx context.Context, host models.Identity, draft models.EventDraft) (*models.Event, error)
	// Get returns a live (neither deleted nor expired) event
	Get(ctx context.Context, id string) (*models.Event, error)
	// GetOwned returns a live event owned by the given host
	GetOwned(ctx context.Context, host models.Identity, id string) (*models.Event, error)
	// CheckOwner makes sure the host owns a non-deleted event. Expired events pass, so hosts can still clean them up
	CheckOwner(ctx context.Context, host models.Identity, id string) error
	// GetForViewer returns the full event to its host and the guest summary of a joinable event to anyone else
	GetForViewer(ctx context.Context, id string, viewer *models.Identity) (interface{}, error)
	// Join returns a live event guests are allowed to join - it also has to be active
	Join(ctx context.Context, id string) (*models.Event, error)
	// FindByCode resolves a typed string code to a joinable event
	FindByCode(ctx context.Context, code string) (*models.Event, error)
	// ResolveURL resolves a scanned QR code URL to a joinable event
	ResolveURL(ctx context.Context, url string) (*models.Event, error)
	// ListByHost returns all non-deleted events of the host, split into active and expired ones
	ListByHost(ctx context.Context, host models.Identity) (*models.HostEvents, error)
	// SetActive toggles whether guests may join an event
	SetActive(ctx context.Context, host models.Identity, id string, active bool) error
	// Delete soft-deletes an event
	Delete(ctx context.Context, host models.Identity, id string) error
	// Share returns the URL, code and invitation text of an event
	Share(ctx context.Context, host models.Identity, id string) (*models.ShareInfo, error)
	// Summary repacks an event for guests
	Summary(ev *models.Event) models.EventSummary
}

// -- EventService implementation --------------------------------------------------------------------------------------

// EventService implementation
type eventService struct {
	repo   repos.EventRepo
	policy expiry.Policy
	feed   LiveFeed
	logger *logrus.Entry
	now    func() time.Time
	newID  func() string
}

// NewEventService creates a new event service instance
func NewEventService(repo repos.EventRepo, policy expiry.Policy, lf LiveFeed, logger *logrus.Entry) EventService {
	return &eventService{
		repo:   repo,
		policy: policy,
		feed:   lf,
		logger: logger,
		now:    serverTime,
		newID:  uuid.NewString,
	}
}

// serverTime returns the current time in the precision all storage backends keep
func serverTime() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Create creates a new event for the given host
func (s *eventService) Create(ctx context.Context, host models.Identity, draft models.EventDraft) (*models.Event, error) {
	draft.Name = normalizeText(draft.Name)
	draft.Description = normalizeText(draft.Description)
	draft.Location = normalizeText(draft.Location)
	if err := validateStruct(&draft); err != nil {
		return nil, err
	}
	// The ID is allocated here, so the event and its code are written in one go
	id, code, err := s.allocateID(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	ev := &models.Event{
		ID:                  id,
		Name:                draft.Name,
		Description:         draft.Description,
		Location:            draft.Location,
		HostID:              host.HostID,
		HostName:            host.DisplayName(),
		AllowPublicMessages: draft.AllowPublicMessages,
		StringCode:          code,
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.Create(ctx, ev); err != nil {
		return nil, makeRepoError("Error while creating event", err)
	}
	s.logger.WithFields(logrus.Fields{
		log.FldEvent: ev.ID,
		log.FldHost:  host.HostID,
		log.FldCode:  ev.StringCode,
	}).Info("Event created")
	return ev, nil
}

// allocateID draws event IDs until one yields a string code no joinable event holds. If that does not succeed within
// maxCodeAttempts, the last ID is used anyway and lookups fall back to the newest event.
func (s *eventService) allocateID(ctx context.Context) (string, string, error) {
	var id, code string
	for i := 0; i < maxCodeAttempts; i++ {
		id = s.newID()
		code = codec.Derive(id)
		holders, err := s.joinableByCode(ctx, code)
		if err != nil {
			return "", "", err
		}
		if len(holders) == 0 {
			return id, code, nil
		}
		s.logger.WithField(log.FldCode, code).Debug("String code already taken - drawing a new event ID")
	}
	s.logger.WithField(log.FldCode, code).Warn("Could not find a free string code - lookups will prefer the newest event")
	return id, code, nil
}

// joinableByCode returns the active, non-deleted, unexpired events holding the given code - newest first
func (s *eventService) joinableByCode(ctx context.Context, code string) ([]models.Event, error) {
	evts, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, makeRepoError("Error while searching events by code", err)
	}
	now := s.now()
	ret := evts[:0]
	for _, ev := range evts {
		if s.policy.Status(ev.CreatedAt, ev.IsDeleted, now) == expiry.Active {
			ret = append(ret, ev)
		}
	}
	repos.SortEventsNewestFirst(ret)
	return ret, nil
}

// Get returns a live (neither deleted nor expired) event
func (s *eventService) Get(ctx context.Context, id string) (*models.Event, error) {
	ev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, ErrEventNotFound
		}
		return nil, makeRepoError("Error while retrieving event", err)
	}
	if s.policy.Status(ev.CreatedAt, ev.IsDeleted, s.now()) != expiry.Active {
		return nil, ErrEventNotFound
	}
	return ev, nil
}

// GetOwned returns a live event owned by the given host
func (s *eventService) GetOwned(ctx context.Context, host models.Identity, id string) (*models.Event, error) {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.HostID != host.HostID {
		return nil, ErrForbidden
	}
	return ev, nil
}

// GetForViewer returns the full event to its host and the guest summary of a joinable event to anyone else
func (s *eventService) GetForViewer(ctx context.Context, id string, viewer *models.Identity) (interface{}, error) {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if isHost(ev, viewer) {
		return ev, nil
	}
	if !ev.IsActive {
		return nil, ErrEventNotFound
	}
	return s.Summary(ev), nil
}

// Join returns a live event guests are allowed to join
func (s *eventService) Join(ctx context.Context, id string) (*models.Event, error) {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ev.IsActive {
		return nil, ErrEventNotFound
	}
	return ev, nil
}

// FindByCode resolves a typed string code to a joinable event
func (s *eventService) FindByCode(ctx context.Context, input string) (*models.Event, error) {
	code, err := codec.Normalize(input)
	if err != nil {
		return nil, MakeError(400, ErrCodeInvalidCode, err.Error())
	}
	evts, err := s.joinableByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(evts) == 0 {
		return nil, ErrEventNotFound
	}
	if len(evts) > 1 {
		s.logger.WithField(log.FldCode, code).Warnf("%d joinable events share the code - using the newest", len(evts))
	}
	ev := evts[0]
	return &ev, nil
}

// ResolveURL resolves a scanned QR code URL to a joinable event
func (s *eventService) ResolveURL(ctx context.Context, url string) (*models.Event, error) {
	id, err := codec.ParseEventURL(url)
	if err != nil {
		return nil, MakeError(400, ErrCodeInvalidURL, err.Error())
	}
	return s.Join(ctx, id)
}

// ListByHost returns all non-deleted events of the host, split into active and expired ones
func (s *eventService) ListByHost(ctx context.Context, host models.Identity) (*models.HostEvents, error) {
	evts, err := s.repo.FindByHost(ctx, host.HostID)
	if err != nil {
		return nil, makeRepoError("Error while listing events", err)
	}
	repos.SortEventsNewestFirst(evts)
	ret := &models.HostEvents{
		Active:  []models.Event{},
		Expired: []models.Event{},
	}
	now := s.now()
	for _, ev := range evts {
		switch s.policy.Status(ev.CreatedAt, ev.IsDeleted, now) {
		case expiry.Active:
			ret.Active = append(ret.Active, ev)
		case expiry.Expired:
			ret.Expired = append(ret.Expired, ev)
		}
	}
	return ret, nil
}

// CheckOwner loads an event for a mutation and makes sure the host owns it. Expired events may still be modified.
func (s *eventService) CheckOwner(ctx context.Context, host models.Identity, id string) error {
	ev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return ErrEventNotFound
		}
		return makeRepoError("Error while retrieving event", err)
	}
	if ev.IsDeleted {
		return ErrEventNotFound
	}
	if ev.HostID != host.HostID {
		return ErrForbidden
	}
	return nil
}

// mutationError translates the error of a repo mutation
func mutationError(err error, message string) error {
	if err == repos.ErrEntityNotExisting {
		return ErrEventNotFound
	}
	return makeRepoError(message, err)
}

// SetActive toggles whether guests may join an event
func (s *eventService) SetActive(ctx context.Context, host models.Identity, id string, active bool) error {
	if err := s.CheckOwner(ctx, host, id); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, active, s.now()); err != nil {
		return mutationError(err, "Error while updating event")
	}
	s.logger.WithField(log.FldEvent, id).Infof("Event active flag set to %t", active)
	s.feed.Notify(ctx, id)
	return nil
}

// Delete soft-deletes an event
func (s *eventService) Delete(ctx context.Context, host models.Identity, id string) error {
	if err := s.CheckOwner(ctx, host, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return mutationError(err, "Error while deleting event")
	}
	s.logger.WithField(log.FldEvent, id).Info("Event deleted")
	// Open feeds notice the deletion on their next reload
	s.feed.Notify(ctx, id)
	return nil
}

// Share returns the URL, code and invitation text of an event
func (s *eventService) Share(ctx context.Context, host models.Identity, id string) (*models.ShareInfo, error) {
	ev, err := s.GetOwned(ctx, host, id)
	if err != nil {
		return nil, err
	}
	return &models.ShareInfo{
		EventID:    ev.ID,
		URL:        codec.EventURL(ev.ID),
		StringCode: ev.StringCode,
		Text:       codec.ShareText(ev.Name, ev.ID),
	}, nil
}

// Summary repacks an event for guests
func (s *eventService) Summary(ev *models.Event) models.EventSummary {
	return ev.Summary(s.policy.ExpiresAt(ev.CreatedAt))
}
