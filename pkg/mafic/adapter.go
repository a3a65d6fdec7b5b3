package mafic

import "context"

// HostAdapter is implemented once per chat platform by the surrounding
// application. The client core never branches on which platform library is
// in use; everything it needs from the platform goes through this
// interface.
//
// The host side is also responsible for feeding credential events into the
// relevant player: call Player.OnVoiceStateUpdate when the platform reports
// a voice session, and Player.OnVoiceServerUpdate when it hands out a voice
// server endpoint and token.
type HostAdapter interface {
	// UserID is the platform identity of this client, sent in the node
	// handshake.
	UserID() int64

	// ShardCount reports the platform gateway shard count, or 0 when
	// unknown. Used by the shard selection strategy.
	ShardCount() int

	// JoinChannel asks the platform to join a voice channel in a guild.
	JoinChannel(ctx context.Context, guildID, channelID int64, selfMute, selfDeaf bool) error

	// LeaveChannel asks the platform to leave the guild's voice channel.
	LeaveChannel(ctx context.Context, guildID int64) error

	// VoiceChannelID reports the voice channel this client currently
	// occupies in a guild, if any. Reconciliation uses it to rebuild
	// players the node knows about but this process does not.
	VoiceChannelID(guildID int64) (int64, bool)

	// DispatchEvent delivers node and player events to the application.
	// Implementations must not block; hand off to a queue or goroutine if
	// handling is slow.
	DispatchEvent(event Event)
}
