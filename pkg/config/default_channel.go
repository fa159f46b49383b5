package config

import "strings"

// DefaultChannel is the channel the "home" command navigates to.
type DefaultChannel struct {
	GuildID   string
	ChannelID string
	Label     string
}

// IsSet reports whether both ids are configured.
func (d DefaultChannel) IsSet() bool {
	return d.GuildID != "" && d.ChannelID != ""
}

func normalizeName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// ResolveDefaultChannel turns the configured guild/channel hints into a
// concrete DefaultChannel. Explicit ids win; otherwise the server is found
// by id or name and the channel by name within it. An unresolvable hint
// yields an unset DefaultChannel.
func ResolveDefaultChannel(servers []Server, channelNames map[string]string, guildID, channelID, serverName, channelName string) DefaultChannel {
	guildID = strings.TrimSpace(guildID)
	channelID = strings.TrimSpace(channelID)
	serverName = strings.TrimSpace(serverName)
	channelName = strings.TrimSpace(channelName)

	if guildID != "" && channelID != "" {
		return DefaultChannel{
			GuildID:   guildID,
			ChannelID: channelID,
			Label:     defaultChannelLabel(channelNames, channelID, channelName),
		}
	}

	var server *Server
	if guildID != "" {
		for i := range servers {
			if strings.TrimSpace(servers[i].ServerID) == guildID || strings.TrimSpace(servers[i].ID) == guildID {
				server = &servers[i]
				break
			}
		}
	} else if serverName != "" {
		target := normalizeName(serverName)
		for i := range servers {
			if normalizeName(servers[i].Name) == target {
				server = &servers[i]
				break
			}
		}
	}

	if server != nil {
		if guildID == "" {
			guildID = server.GuildID()
		}
		if channelID == "" && channelName != "" {
			target := normalizeName(channelName)
			for _, ch := range server.Channels {
				if normalizeName(ch.Name) == target {
					channelID = strings.TrimSpace(ch.ID)
					break
				}
			}
		}
	}

	if guildID != "" && channelID != "" {
		return DefaultChannel{
			GuildID:   guildID,
			ChannelID: channelID,
			Label:     defaultChannelLabel(channelNames, channelID, channelName),
		}
	}

	return DefaultChannel{}
}

// defaultChannelLabel prefers the directory name, then the configured name,
// then the raw id.
func defaultChannelLabel(channelNames map[string]string, channelID, channelName string) string {
	if name := channelNames[channelID]; name != "" {
		return name
	}
	if channelName != "" {
		return channelName
	}
	return channelID
}
