// Package mafic is a client for fleets of Lavalink-compatible audio
// servers.
//
// # Overview
//
// The library provides:
//   - Websocket sessions per node with auto-reconnection and resumption
//   - A registry that places guilds onto nodes through pluggable
//     strategies (shard affinity, region affinity, load, random)
//   - Players that drive playback in one guild voice channel each
//   - Track resolution, local and remote track id decoding, filters and
//     route planner management
//   - Structured logging with Zerolog
//
// # Quick Start
//
//	registry := mafic.NewNodeRegistry(adapter)
//	node, err := registry.CreateNode(ctx, mafic.NodeConfig{
//		Host:     "localhost",
//		Port:     2333,
//		Label:    "MAIN",
//		Password: "youshallnotpass",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	player := registry.NewPlayer(guildID, channelID)
//	if err := player.Connect(ctx, false, true); err != nil {
//		log.Fatal(err)
//	}
//
//	tracks, _, err := node.FetchTracks(ctx, "never gonna give you up", mafic.SearchYouTube)
//	if err != nil || len(tracks) == 0 {
//		log.Fatal(err)
//	}
//	if err := player.Play(ctx, tracks[0], nil); err != nil {
//		log.Fatal(err)
//	}
//
// The adapter is the bridge to the host platform library: it joins and
// leaves voice channels, exposes the bot's user id and shard count and
// receives playback events. Implement HostAdapter once per platform
// integration and forward voice state and voice server updates into the
// players.
package mafic

// Version is the library version, sent to nodes in the Client-Name
// header.
const Version = "1.0.0"
