package command

import (
	"fmt"
	"strings"

	"github.com/cyobiorah/go-social-connect/core"
)

const (
	TypeBeginLink    = "connect.command.link.begin"
	TypeCompleteLink = "connect.command.link.complete"
	TypeRefresh      = "connect.command.refresh"
	TypePublish      = "connect.command.publish"
	TypeUnlink       = "connect.command.unlink"
)

type BeginLinkMessage struct {
	Request core.BeginLinkRequest
}

func (BeginLinkMessage) Type() string { return TypeBeginLink }

func (m BeginLinkMessage) Validate() error {
	if _, err := core.ParsePlatform(string(m.Request.Platform)); err != nil {
		return fmt.Errorf("command: platform is required")
	}
	if err := m.Request.Owner.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

type CompleteLinkMessage struct {
	Request core.CallbackRequest
}

func (CompleteLinkMessage) Type() string { return TypeCompleteLink }

func (m CompleteLinkMessage) Validate() error {
	if _, err := core.ParsePlatform(string(m.Request.Platform)); err != nil {
		return fmt.Errorf("command: platform is required")
	}
	if strings.TrimSpace(m.Request.Error) == "" && strings.TrimSpace(m.Request.State) == "" {
		return fmt.Errorf("command: callback state is required")
	}
	return nil
}

type RefreshMessage struct {
	AccountID string
}

func (RefreshMessage) Type() string { return TypeRefresh }

func (m RefreshMessage) Validate() error {
	if strings.TrimSpace(m.AccountID) == "" {
		return fmt.Errorf("command: account id is required")
	}
	return nil
}

type PublishMessage struct {
	Request core.PublishRequest
}

func (PublishMessage) Type() string { return TypePublish }

func (m PublishMessage) Validate() error {
	if strings.TrimSpace(m.Request.AccountID) == "" {
		return fmt.Errorf("command: account id is required")
	}
	if strings.TrimSpace(m.Request.Post.Text) == "" && len(m.Request.Post.MediaURLs) == 0 {
		return fmt.Errorf("command: post content is required")
	}
	return nil
}

type UnlinkMessage struct {
	AccountID string
	Reason    string
}

func (UnlinkMessage) Type() string { return TypeUnlink }

func (m UnlinkMessage) Validate() error {
	if strings.TrimSpace(m.AccountID) == "" {
		return fmt.Errorf("command: account id is required")
	}
	return nil
}
