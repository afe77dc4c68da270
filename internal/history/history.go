package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cozy-creator/medpredict/internal/config"
	"github.com/cozy-creator/medpredict/internal/db/repository"
	"github.com/cozy-creator/medpredict/internal/diagnosis"
	"github.com/cozy-creator/medpredict/internal/mq"
	"github.com/cozy-creator/medpredict/internal/services/fileuploader"
	"github.com/cozy-creator/medpredict/internal/utils/hashutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service publishes prediction events and records them in the database.
type Service struct {
	queue    mq.MQ
	topic    string
	repo     repository.IPredictionRepository
	uploader *fileuploader.Uploader
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithUploader archives every classified image before the event is published.
func WithUploader(uploader *fileuploader.Uploader) Option {
	return func(s *Service) {
		s.uploader = uploader
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTopic(topic string) Option {
	return func(s *Service) {
		s.topic = topic
	}
}

func NewService(queue mq.MQ, repo repository.IPredictionRepository, opts ...Option) *Service {
	s := &Service{
		queue:  queue,
		topic:  config.PredictionsTopic,
		repo:   repo,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record builds the event for result and publishes it. Archive failures are
// logged and leave the URL empty.
func (s *Service) Record(ctx context.Context, disease diagnosis.Disease, result *diagnosis.Result, image []byte) (*PredictionEvent, error) {
	event := &PredictionEvent{
		ID:        uuid.New(),
		Disease:   string(disease),
		Result:    result,
		ImageHash: hashutil.Blake3Hash(image),
		CreatedAt: s.now(),
	}

	if s.uploader != nil {
		select {
		case res := <-s.uploader.UploadBytes(ctx, image):
			if res.Err != nil {
				s.logger.Warn("failed to archive upload", zap.String("prediction_id", event.ID.String()), zap.Error(res.Err))
			} else {
				event.ImageURL = res.URL
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	data, err := event.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode prediction event: %w", err)
	}

	if err := s.queue.Publish(ctx, s.topic, data); err != nil {
		return nil, fmt.Errorf("failed to publish prediction event: %w", err)
	}

	return event, nil
}

// Run consumes prediction events until ctx is cancelled or the queue closes.
func (s *Service) Run(ctx context.Context) error {
	for {
		msg, err := s.queue.Receive(ctx, s.topic)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, mq.ErrQueueClosed) || errors.Is(err, mq.ErrTopicClosed) {
				return nil
			}
			s.logger.Error("failed to receive prediction event", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if err := s.persist(ctx, msg.Data()); err != nil {
			s.logger.Error("failed to record prediction", zap.Error(err))
		}

		if err := s.queue.Ack(s.topic, msg); err != nil {
			s.logger.Warn("failed to ack prediction event", zap.Error(err))
		}
	}
}

func (s *Service) persist(ctx context.Context, data []byte) error {
	event, err := UnmarshalEvent(data)
	if err != nil {
		return fmt.Errorf("failed to decode prediction event: %w", err)
	}

	if _, err := s.repo.Create(ctx, event.Model()); err != nil {
		return fmt.Errorf("failed to store prediction %s: %w", event.ID, err)
	}

	s.logger.Debug("prediction recorded",
		zap.String("prediction_id", event.ID.String()),
		zap.String("disease", event.Disease),
	)
	return nil
}
