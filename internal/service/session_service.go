package service

import (
	"errors"

	"go.uber.org/zap"

	"github.com/anatoly-dev/go-ws-matchmaker/pkg/matchmaking"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/metrics"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/models"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/websocket"
)

type MessageHandler func(clientID string, msg models.ClientMessage) error

// SessionService connects websocket sessions to the matchmaking hub. It
// decodes inbound frames and dispatches them by message type.
type SessionService struct {
	hub      *matchmaking.Hub
	handlers map[models.MessageType]MessageHandler
	logger   *zap.Logger
	metrics  *metrics.BusinessMetrics
}

var _ websocket.SessionHandler = (*SessionService)(nil)

func NewSessionService(hub *matchmaking.Hub, logger *zap.Logger) *SessionService {
	service := &SessionService{
		hub:      hub,
		handlers: make(map[models.MessageType]MessageHandler),
		logger:   logger,
	}

	service.registerMessageHandlers()

	return service
}

func (s *SessionService) SetMetrics(metrics *metrics.BusinessMetrics) {
	s.metrics = metrics
}

func (s *SessionService) RegisterHandler(msgType models.MessageType, handler MessageHandler) {
	s.handlers[msgType] = handler
}

func (s *SessionService) registerMessageHandlers() {
	s.RegisterHandler(models.MessageTypeReady, func(clientID string, msg models.ClientMessage) error {
		ready := msg.(*models.Ready)
		s.logger.Debug("Handling ready message",
			zap.String("clientID", clientID),
			zap.String("name", ready.Name))
		return s.hub.Ready(clientID, ready.Name)
	})

	s.RegisterHandler(models.MessageTypeSignal, func(clientID string, msg models.ClientMessage) error {
		return s.hub.Signal(clientID, msg.(*models.SignalRequest).Signal)
	})

	s.RegisterHandler(models.MessageTypeNext, func(clientID string, msg models.ClientMessage) error {
		s.logger.Debug("Handling next message", zap.String("clientID", clientID))
		return s.hub.Next(clientID)
	})
}

func (s *SessionService) OnConnect(sender *websocket.Client) (string, error) {
	return s.hub.Connect(sender)
}

func (s *SessionService) OnMessage(clientID string, data []byte) {
	msg, err := models.ParseClientMessage(data)
	if err != nil {
		if errors.Is(err, models.ErrUnknownMessageType) {
			s.logger.Debug("Ignoring unknown message type", zap.String("clientID", clientID), zap.Error(err))
			if s.metrics != nil {
				s.metrics.UnknownMessages.Inc()
			}
			return
		}

		s.logger.Debug("Dropping malformed message", zap.String("clientID", clientID), zap.Error(err))
		if s.metrics != nil {
			s.metrics.MalformedMessages.Inc()
		}
		return
	}

	handler, ok := s.handlers[msg.MessageType()]
	if !ok {
		s.logger.Warn("No handler registered for message type", zap.String("type", string(msg.MessageType())))
		return
	}

	if s.metrics != nil {
		s.metrics.MessagesByType.WithLabelValues(string(msg.MessageType())).Inc()
	}

	if err := handler(clientID, msg); err != nil {
		s.logger.Warn("Failed to handle message",
			zap.Error(err),
			zap.String("clientID", clientID),
			zap.String("type", string(msg.MessageType())))
	}
}

func (s *SessionService) OnDisconnect(clientID string) {
	if err := s.hub.Disconnect(clientID); err != nil {
		s.logger.Debug("Disconnect not applied", zap.String("clientID", clientID), zap.Error(err))
	}
}

func (s *SessionService) Stats() (matchmaking.Counts, error) {
	return s.hub.Stats()
}

func (s *SessionService) Start() {
	s.logger.Info("Starting session service")
	go s.hub.Run()
}

func (s *SessionService) Stop() {
	s.logger.Info("Stopping session service")
	s.hub.Stop()
	s.hub.Wait()
}
