package socialconnect

import (
	"fmt"

	"github.com/cyobiorah/go-social-connect/command"
	"github.com/cyobiorah/go-social-connect/core"
)

// Commands bundles the command handlers bound to one linking service.
type Commands struct {
	BeginLink    *command.BeginLinkCommand
	CompleteLink *command.CompleteLinkCommand
	Refresh      *command.RefreshCommand
	Publish      *command.PublishCommand
	Unlink       *command.UnlinkCommand
}

type Facade struct {
	service  core.LinkingService
	commands Commands
}

func NewFacade(service core.LinkingService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("socialconnect: linking service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			BeginLink:    command.NewBeginLinkCommand(service),
			CompleteLink: command.NewCompleteLinkCommand(service),
			Refresh:      command.NewRefreshCommand(service),
			Publish:      command.NewPublishCommand(service),
			Unlink:       command.NewUnlinkCommand(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Service() core.LinkingService {
	if f == nil {
		return nil
	}
	return f.service
}
