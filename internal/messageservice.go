package internal

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/feed"
	"github.com/derWhity/whispqr/internal/log"
	"github.com/derWhity/whispqr/internal/models"
	"github.com/derWhity/whispqr/internal/repos"
)

// MessageService provides service functions for the anonymous messages of events
type MessageService interface {
	// Add leaves a new anonymous message on a live event
	Add(ctx context.Context, eventID string, draft models.MessageDraft) (*models.Message, error)
	// List returns the messages of a live event the viewer may see - newest first.
	// A nil viewer or one that is not the host of the event only gets the public messages.
	List(ctx context.Context, eventID string, viewer *models.Identity) ([]models.Message, error)
	// Subscribe opens a live feed on the messages the viewer may see
	Subscribe(ctx context.Context, eventID string, viewer *models.Identity, onUpdate feed.UpdateFunc) (*feed.Subscription, error)
	// Delete soft-deletes a message. Only the host of the event may do this.
	Delete(ctx context.Context, host models.Identity, eventID, messageID string) error
}

// -- MessageService implementation ------------------------------------------------------------------------------------

type messageService struct {
	events EventService
	repo   repos.MessageRepo
	feed   LiveFeed
	logger *logrus.Entry
	now    func() time.Time
	newID  func() string
}

// NewMessageService creates a new message service instance
func NewMessageService(
	events EventService,
	repo repos.MessageRepo,
	lf LiveFeed,
	logger *logrus.Entry,
) MessageService {
	return &messageService{
		events: events,
		repo:   repo,
		feed:   lf,
		logger: logger,
		now:    serverTime,
		newID:  uuid.NewString,
	}
}

// Add leaves a new anonymous message on a live event
func (s *messageService) Add(ctx context.Context, eventID string, draft models.MessageDraft) (*models.Message, error) {
	draft.Content = normalizeText(draft.Content)
	if err := validateStruct(&draft); err != nil {
		return nil, err
	}
	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	msg := &models.Message{
		ID:      s.newID(),
		EventID: ev.ID,
		Content: draft.Content,
		// Events that disallow public messages only ever receive private ones
		IsPublic:  draft.IsPublic && ev.AllowPublicMessages,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, makeRepoError("Error while storing message", err)
	}
	s.logger.WithFields(logrus.Fields{
		log.FldEvent:   ev.ID,
		log.FldMessage: msg.ID,
	}).Debug("Message added")
	s.feed.Notify(ctx, ev.ID)
	return msg, nil
}

// isHost checks whether the viewer owns the event
func isHost(ev *models.Event, viewer *models.Identity) bool {
	return viewer != nil && viewer.HostID != "" && viewer.HostID == ev.HostID
}

// List returns the messages of a live event the viewer may see
func (s *messageService) List(ctx context.Context, eventID string, viewer *models.Identity) ([]models.Message, error) {
	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.List(ctx, ev.ID, !isHost(ev, viewer))
	if err != nil {
		return nil, makeRepoError("Error while listing messages", err)
	}
	repos.SortMessagesNewestFirst(msgs)
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// Subscribe opens a live feed on the messages the viewer may see. Each update re-checks the event, so a feed of an
// event that got deleted or expired receives ErrEventNotFound.
func (s *messageService) Subscribe(
	ctx context.Context,
	eventID string,
	viewer *models.Identity,
	onUpdate feed.UpdateFunc,
) (*feed.Subscription, error) {
	if _, err := s.events.Get(ctx, eventID); err != nil {
		return nil, err
	}
	query := func(ctx context.Context) ([]models.Message, error) {
		return s.List(ctx, eventID, viewer)
	}
	sub, err := s.feed.Subscribe(ctx, eventID, query, onUpdate)
	if err != nil {
		s.logger.WithError(err).WithField(log.FldEvent, eventID).Error("Failed to open live feed")
		return nil, MakeError(503, ErrCodeFeedUnavailable, "The live feed is currently unavailable")
	}
	return sub, nil
}

// Delete soft-deletes a message
func (s *messageService) Delete(ctx context.Context, host models.Identity, eventID, messageID string) error {
	if err := s.events.CheckOwner(ctx, host, eventID); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, eventID, messageID, s.now()); err != nil {
		if err == repos.ErrEntityNotExisting {
			return ErrMessageNotFound
		}
		return makeRepoError("Error while deleting message", err)
	}
	s.logger.WithFields(logrus.Fields{
		log.FldEvent:   eventID,
		log.FldMessage: messageID,
	}).Info("Message deleted")
	s.feed.Notify(ctx, eventID)
	return nil
}
