// Package directory indexes the configured servers and channels so goto
// arguments can be resolved by id, name, guild_id/channel_id path, or
// server:channel coordinates.
package directory

import (
	"fmt"
	"strings"

	"monkeywatch/pkg/config"
)

// ChannelRef locates one channel. Indices are 1-based positions in the
// configured directory and are what the servers listing prints.
type ChannelRef struct {
	GuildID      string
	ChannelID    string
	ChannelName  string
	ServerName   string
	ServerIndex  int
	ChannelIndex int
}

// Label returns the channel name, falling back to the id for channels the
// directory knows only by id.
func (r ChannelRef) Label() string {
	if r.ChannelName != "" {
		return r.ChannelName
	}
	return r.ChannelID
}

// ServerRef groups the channels of one configured server.
type ServerRef struct {
	ServerIndex int
	GuildID     string
	ServerName  string
	Channels    []ChannelRef
}

// Index is the lookup structure built from the server directory. ByName keys
// are casefolded channel names and may map to several channels.
type Index struct {
	ByID    map[string]ChannelRef
	ByName  map[string][]ChannelRef
	Servers []ServerRef
}

// Build indexes the configured servers. Channels without an id are skipped;
// everything else is trimmed before indexing.
func Build(servers []config.Server) Index {
	ix := Index{
		ByID:   make(map[string]ChannelRef),
		ByName: make(map[string][]ChannelRef),
	}
	for serverPos, server := range servers {
		serverIdx := serverPos + 1
		guildID := strings.TrimSpace(server.GuildID())
		serverName := strings.TrimSpace(server.Name)
		var refs []ChannelRef
		for channelPos, channel := range server.Channels {
			channelID := strings.TrimSpace(channel.ID)
			if channelID == "" {
				continue
			}
			ref := ChannelRef{
				GuildID:      guildID,
				ChannelID:    channelID,
				ChannelName:  strings.TrimSpace(channel.Name),
				ServerName:   serverName,
				ServerIndex:  serverIdx,
				ChannelIndex: channelPos + 1,
			}
			refs = append(refs, ref)
			ix.ByID[ref.ChannelID] = ref
			if ref.ChannelName != "" {
				key := normalizeName(ref.ChannelName)
				ix.ByName[key] = append(ix.ByName[key], ref)
			}
		}
		ix.Servers = append(ix.Servers, ServerRef{
			ServerIndex: serverIdx,
			GuildID:     guildID,
			ServerName:  serverName,
			Channels:    refs,
		})
	}
	return ix
}

// FormatServers renders the directory as the numbered listing shown for the
// servers command.
func (ix Index) FormatServers() string {
	if len(ix.Servers) == 0 {
		return "no servers loaded (servers.json missing or empty)"
	}
	lines := []string{"servers:"}
	for _, server := range ix.Servers {
		serverLabel := server.ServerName
		if serverLabel == "" {
			serverLabel = "unknown-server"
		}
		serverLine := fmt.Sprintf("%d) %s", server.ServerIndex, serverLabel)
		if server.GuildID != "" {
			serverLine += fmt.Sprintf(" (id=%s)", server.GuildID)
		}
		lines = append(lines, serverLine)
		if len(server.Channels) == 0 {
			lines = append(lines, "  (no channels)")
			continue
		}
		for _, channel := range server.Channels {
			channelLabel := channel.ChannelName
			if channelLabel == "" {
				channelLabel = channel.ChannelID
			}
			if channelLabel == "" {
				channelLabel = "unknown-channel"
			}
			channelLine := fmt.Sprintf("  %d) %s", channel.ChannelIndex, channelLabel)
			if channel.ChannelID != "" {
				channelLine += fmt.Sprintf(" (id=%s)", channel.ChannelID)
			}
			lines = append(lines, channelLine)
		}
	}
	lines = append(lines, "goto <server_index>:<channel_index> to jump quickly.")
	return strings.Join(lines, "\n")
}

func normalizeName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
