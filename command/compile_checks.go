package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[BeginLinkMessage]    = (*BeginLinkCommand)(nil)
	_ gocmd.Commander[CompleteLinkMessage] = (*CompleteLinkCommand)(nil)
	_ gocmd.Commander[RefreshMessage]      = (*RefreshCommand)(nil)
	_ gocmd.Commander[PublishMessage]      = (*PublishCommand)(nil)
	_ gocmd.Commander[UnlinkMessage]       = (*UnlinkCommand)(nil)
)
