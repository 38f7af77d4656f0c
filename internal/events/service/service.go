package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/utils"

	"github.com/go-playground/validator/v10"
)

const (
	MinCapacity = 1
	MaxCapacity = 1000
)

var (
	ErrMissingEventFields        = errors.New("all the details are required")
	ErrInvalidCapacity           = errors.New("capacity must be between 1 and 1000")
	ErrInvalidDateTime           = errors.New("invalid dateTime format")
	ErrEventExists               = errors.New("event already exists")
	ErrMissingRegistrationFields = errors.New("all fields are required")
	ErrMissingCancellationFields = errors.New("email and eventId are required")
	ErrMissingEmail              = errors.New("email is required")
	ErrRegistrationInProgress    = errors.New("registration already in progress")
	ErrEventNotFound             = errors.New("event not found")
	ErrUserNotFound              = errors.New("user not found")
	ErrPastEvent                 = errors.New("cannot register for past events")
	ErrEventFull                 = errors.New("event is already full")
	ErrAlreadyRegistered         = errors.New("user already registered for this event")
	ErrNotRegistered             = errors.New("user not registered for this event")
)

type EventDBLayer interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	EventTitleExists(ctx context.Context, title string) (bool, error)
	ListEventsWithRegistrants(ctx context.Context) ([]models.EventWithRegistrants, error)
	ListUpcomingEvents(ctx context.Context, now time.Time) ([]models.Event, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetOrCreateUser(ctx context.Context, user *models.User) (*models.User, bool, error)
	CountRegistrations(ctx context.Context, eventID string) (int, error)
	IsRegistered(ctx context.Context, eventID, userID string) (bool, error)
	AddRegistration(ctx context.Context, eventID, userID string, at time.Time) error
	RemoveRegistration(ctx context.Context, eventID, userID string) error
	Ping(ctx context.Context) error
}

// RegistrationLock serialises submissions for one (event, email) pair.
type RegistrationLock interface {
	Acquire(ctx context.Context, eventID, email, token string) (bool, error)
	Release(ctx context.Context, eventID, email, token string) error
}

type Publisher interface {
	PublishEventCreated(ctx context.Context, event models.Event) error
	PublishRegistration(ctx context.Context, msg models.RegistrationMessage) error
}

type PassEncoder interface {
	Encode(pass models.RegistrationPass) ([]byte, error)
}

// Recorder counts registration attempts by outcome.
type Recorder interface {
	RecordRegistration(outcome string)
}

type EventService struct {
	DB        EventDBLayer
	Lock      RegistrationLock
	Publisher Publisher
	Passes    PassEncoder
	Recorder  Recorder
	Logger    *logger.Logger

	validate *validator.Validate
	now      func() time.Time
}

func NewEventService(db EventDBLayer, lock RegistrationLock, publisher Publisher, passes PassEncoder, log *logger.Logger) *EventService {
	return &EventService{
		DB:        db,
		Lock:      lock,
		Publisher: publisher,
		Passes:    passes,
		Logger:    log,
		validate:  validator.New(),
		now:       time.Now,
	}
}

// WithClock replaces the time source, used by tests.
func (s *EventService) WithClock(now func() time.Time) *EventService {
	s.now = now
	return s
}

func (s *EventService) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s *EventService) validator() *validator.Validate {
	if s.validate == nil {
		s.validate = validator.New()
	}
	return s.validate
}

// CreateEvent validates req and stores a new event, returning its id.
func (s *EventService) CreateEvent(ctx context.Context, req models.CreateEventRequest) (string, error) {
	if err := s.validator().Struct(req); err != nil {
		return "", ErrMissingEventFields
	}
	if req.Capacity < MinCapacity || req.Capacity > MaxCapacity {
		return "", ErrInvalidCapacity
	}
	dateTime, err := utils.ParseDateTime(req.DateTime)
	if err != nil {
		return "", ErrInvalidDateTime
	}

	exists, err := s.DB.EventTitleExists(ctx, req.Title)
	if err != nil {
		return "", fmt.Errorf("check title: %w", err)
	}
	if exists {
		return "", ErrEventExists
	}

	event := models.Event{
		ID:        utils.GenerateID(),
		Title:     req.Title,
		DateTime:  dateTime,
		Location:  req.Location,
		Capacity:  req.Capacity,
		CreatedAt: s.clock(),
	}
	if err := s.DB.CreateEvent(ctx, &event); err != nil {
		if errors.Is(err, models.ErrDuplicateTitle) {
			return "", ErrEventExists
		}
		return "", fmt.Errorf("create event: %w", err)
	}

	s.Logger.LogDatabase("INSERT", "events", fmt.Sprintf("Created event %s (%s)", event.ID, event.Title))
	if err := s.Publisher.PublishEventCreated(ctx, event); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish event.created for %s: %v", event.ID, err))
	}
	return event.ID, nil
}

func (s *EventService) ListEventsWithRegistrants(ctx context.Context) ([]models.EventWithRegistrants, error) {
	return s.DB.ListEventsWithRegistrants(ctx)
}

func (s *EventService) UpcomingEvents(ctx context.Context) ([]models.Event, error) {
	events, err := s.DB.ListUpcomingEvents(ctx, s.clock())
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// Register links the user identified by email to the event, creating the
// user on first sight.
func (s *EventService) Register(ctx context.Context, req models.RegistrationRequest) (err error) {
	defer func() { s.record(err) }()

	if err := s.validator().Struct(req); err != nil {
		return ErrMissingRegistrationFields
	}

	token := utils.GenerateID()
	locked, lockErr := s.Lock.Acquire(ctx, req.EventID, req.Email, token)
	switch {
	case lockErr != nil:
		s.Logger.Warn("REDIS", fmt.Sprintf("Registration lock unavailable, continuing without it: %v", lockErr))
	case !locked:
		return ErrRegistrationInProgress
	default:
		defer func() {
			if err := s.Lock.Release(context.WithoutCancel(ctx), req.EventID, req.Email, token); err != nil {
				s.Logger.Warn("REDIS", fmt.Sprintf("Failed to release registration lock: %v", err))
			}
		}()
	}

	event, err := s.lookupEvent(ctx, req.EventID)
	if err != nil {
		return err
	}

	now := s.clock()
	if event.DateTime.Before(now) {
		return ErrPastEvent
	}

	count, err := s.DB.CountRegistrations(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("count registrations: %w", err)
	}
	if count >= event.Capacity {
		return ErrEventFull
	}

	user, created, err := s.DB.GetOrCreateUser(ctx, &models.User{
		ID:        utils.GenerateID(),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("get or create user: %w", err)
	}
	if created {
		s.Logger.LogDatabase("INSERT", "users", fmt.Sprintf("Created user %s", user.ID))
	}

	registered, err := s.DB.IsRegistered(ctx, event.ID, user.ID)
	if err != nil {
		return fmt.Errorf("check registration: %w", err)
	}
	if registered {
		return ErrAlreadyRegistered
	}

	if err := s.DB.AddRegistration(ctx, event.ID, user.ID, now); err != nil {
		switch {
		case errors.Is(err, models.ErrCapacityReached):
			return ErrEventFull
		case errors.Is(err, models.ErrDuplicateLink):
			return ErrAlreadyRegistered
		case errors.Is(err, models.ErrNotFound):
			return ErrEventNotFound
		}
		return fmt.Errorf("add registration: %w", err)
	}

	s.Logger.LogRegistration("REGISTERED", event.ID, user.Email)
	s.publish(ctx, models.RegistrationMessage{
		Type:       models.MessageRegistrationCreated,
		EventID:    event.ID,
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
		OccurredAt: now,
	})
	return nil
}

// CancelRegistration removes the user's link to the event.
func (s *EventService) CancelRegistration(ctx context.Context, req models.CancellationRequest) error {
	if err := s.validator().Struct(req); err != nil {
		return ErrMissingCancellationFields
	}

	user, err := s.lookupUser(ctx, req.Email)
	if err != nil {
		return err
	}
	event, err := s.lookupEvent(ctx, req.EventID)
	if err != nil {
		return err
	}

	registered, err := s.DB.IsRegistered(ctx, event.ID, user.ID)
	if err != nil {
		return fmt.Errorf("check registration: %w", err)
	}
	if !registered {
		return ErrNotRegistered
	}

	if err := s.DB.RemoveRegistration(ctx, event.ID, user.ID); err != nil {
		if errors.Is(err, models.ErrRegistrationNotFound) {
			return ErrNotRegistered
		}
		return fmt.Errorf("remove registration: %w", err)
	}

	s.Logger.LogRegistration("CANCELLED", event.ID, user.Email)
	s.publish(ctx, models.RegistrationMessage{
		Type:       models.MessageRegistrationCancelled,
		EventID:    event.ID,
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
		OccurredAt: s.clock(),
	})
	return nil
}

// Stats reports capacity usage for one event.
func (s *EventService) Stats(ctx context.Context, eventID string) (*models.EventStats, error) {
	event, err := s.lookupEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	total, err := s.DB.CountRegistrations(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}

	return &models.EventStats{
		TotalRegistrations: total,
		RemainingCapacity:  event.Capacity - total,
		PercentageUsed:     utils.PercentageOf(total, event.Capacity),
	}, nil
}

// RegistrationPass renders the QR pass proving email is registered for
// eventID.
func (s *EventService) RegistrationPass(ctx context.Context, eventID, email string) ([]byte, error) {
	if email == "" {
		return nil, ErrMissingEmail
	}

	user, err := s.lookupUser(ctx, email)
	if err != nil {
		return nil, err
	}
	event, err := s.lookupEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	registered, err := s.DB.IsRegistered(ctx, event.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("check registration: %w", err)
	}
	if !registered {
		return nil, ErrNotRegistered
	}

	png, err := s.Passes.Encode(models.RegistrationPass{
		EventID:  event.ID,
		UserID:   user.ID,
		Email:    user.Email,
		Title:    event.Title,
		DateTime: event.DateTime,
		IssuedAt: s.clock(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode pass: %w", err)
	}
	return png, nil
}

func (s *EventService) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func (s *EventService) lookupEvent(ctx context.Context, id string) (*models.Event, error) {
	if !utils.IsValidID(id) {
		return nil, ErrEventNotFound
	}
	event, err := s.DB.GetEventByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (s *EventService) lookupUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.DB.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *EventService) publish(ctx context.Context, msg models.RegistrationMessage) {
	if err := s.Publisher.PublishRegistration(ctx, msg); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s for event %s: %v", msg.Type, msg.EventID, err))
	}
}

func (s *EventService) record(err error) {
	if s.Recorder == nil {
		return
	}
	outcome := "registered"
	switch {
	case err == nil:
	case errors.Is(err, ErrEventFull):
		outcome = "full"
	case errors.Is(err, ErrAlreadyRegistered):
		outcome = "duplicate"
	case errors.Is(err, ErrRegistrationInProgress):
		outcome = "in_progress"
	case errors.Is(err, ErrMissingRegistrationFields), errors.Is(err, ErrEventNotFound), errors.Is(err, ErrPastEvent):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	s.Recorder.RecordRegistration(outcome)
}
