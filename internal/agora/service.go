package agora

import (
	"fmt"
	"time"

	rtctokenbuilder "github.com/AgoraIO-Community/go-tokenbuilder/rtctokenbuilder"

	"github.com/moonvale/werewolf/backend/internal/config"
)

// Service issues Agora RTC tokens for the voice channels. The game engine
// decides who may publish; this service only signs what it is told.
type Service struct {
	appID          string
	appCertificate string
	tokenExpiry    uint32
}

func NewService(cfg *config.AgoraConfig) *Service {
	return &Service{
		appID:          cfg.AppID,
		appCertificate: cfg.AppCertificate,
		tokenExpiry:    cfg.TokenExpiry,
	}
}

// GenerateRTCToken generates an RTC token for voice channel access.
func (s *Service) GenerateRTCToken(channelName string, uid uint32, role rtctokenbuilder.Role) (string, error) {
	expireTime := uint32(time.Now().Unix()) + s.tokenExpiry

	token, err := rtctokenbuilder.BuildTokenWithUID(
		s.appID,
		s.appCertificate,
		channelName,
		uid,
		role,
		expireTime,
	)
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}
	return token, nil
}

// GeneratePublisherToken grants speaking rights; handed out only to the
// active speaker of a speech phase.
func (s *Service) GeneratePublisherToken(channelName string, uid uint32) (string, error) {
	return s.GenerateRTCToken(channelName, uid, rtctokenbuilder.RolePublisher)
}

// GenerateSubscriberToken grants listen-only access.
func (s *Service) GenerateSubscriberToken(channelName string, uid uint32) (string, error) {
	return s.GenerateRTCToken(channelName, uid, rtctokenbuilder.RoleSubscriber)
}

func (s *Service) GetAppID() string       { return s.appID }
func (s *Service) GetTokenExpiry() uint32 { return s.tokenExpiry }
func (s *Service) Enabled() bool          { return s.appID != "" && s.appCertificate != "" }

// ValidateChannelName checks the Agora channel name constraints.
func (s *Service) ValidateChannelName(channelName string) error {
	if len(channelName) == 0 {
		return fmt.Errorf("channel name cannot be empty")
	}
	if len(channelName) > 64 {
		return fmt.Errorf("channel name too long (max 64 characters)")
	}
	for _, char := range channelName {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') || char == '_' || char == '-') {
			return fmt.Errorf("channel name contains invalid characters")
		}
	}
	return nil
}
