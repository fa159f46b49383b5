package directory

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolve turns a goto argument into a channel. It accepts a channel name, a
// channel id, a guild_id/channel_id path, and server:channel coordinates
// where either side may be a 1-based index or a name. Surrounding quotes are
// stripped first.
func (ix Index) Resolve(argument string) (ChannelRef, error) {
	cleaned := strings.TrimSpace(argument)
	if len(cleaned) >= 2 && cleaned[0] == cleaned[len(cleaned)-1] && (cleaned[0] == '\'' || cleaned[0] == '"') {
		cleaned = strings.TrimSpace(cleaned[1 : len(cleaned)-1])
	}
	if cleaned == "" {
		return ChannelRef{}, fmt.Errorf("missing channel")
	}

	if strings.Contains(cleaned, ":") {
		return ix.resolveCoordinates(cleaned)
	}

	if strings.Contains(cleaned, "/") {
		return ix.resolvePath(cleaned)
	}

	if isDigits(cleaned) {
		ref, ok := ix.ByID[cleaned]
		if !ok {
			return ChannelRef{}, fmt.Errorf("unknown channel id: %s", cleaned)
		}
		return ref, nil
	}

	matches := ix.ByName[normalizeName(cleaned)]
	switch len(matches) {
	case 0:
		return ChannelRef{}, fmt.Errorf("unknown channel name: %s", cleaned)
	case 1:
		return matches[0], nil
	default:
		return ChannelRef{}, fmt.Errorf("ambiguous channel name: %s (%s)", cleaned, coordinateLabels(matches))
	}
}

// resolveCoordinates handles the server:channel form. The left side picks a
// server by index or name; the right side picks a channel inside it.
func (ix Index) resolveCoordinates(cleaned string) (ChannelRef, error) {
	left, right, _ := strings.Cut(cleaned, ":")
	left = strings.TrimSpace(left)
	right = strings.TrimSpace(right)
	if left == "" || right == "" {
		return ChannelRef{}, fmt.Errorf("expected server:channel or server_index:channel_index")
	}

	if isDigits(left) {
		serverIdx, _ := strconv.Atoi(left)
		if serverIdx < 1 || serverIdx > len(ix.Servers) {
			return ChannelRef{}, fmt.Errorf("unknown server index: %s", left)
		}
		server := ix.Servers[serverIdx-1]
		if isDigits(right) {
			channelIdx, _ := strconv.Atoi(right)
			if channelIdx < 1 || channelIdx > len(server.Channels) {
				return ChannelRef{}, fmt.Errorf("unknown channel index: %s:%s", left, right)
			}
			return server.Channels[channelIdx-1], nil
		}
		matches := channelsNamed(server, right)
		switch len(matches) {
		case 0:
			return ChannelRef{}, fmt.Errorf("unknown channel name: %s (server %s)", right, left)
		case 1:
			return matches[0], nil
		default:
			labels := make([]string, len(matches))
			for i, ref := range matches {
				labels[i] = fmt.Sprintf("%s:%d", left, ref.ChannelIndex)
			}
			return ChannelRef{}, fmt.Errorf("ambiguous channel name: %s (%s)", right, strings.Join(labels, ", "))
		}
	}

	targetServer := normalizeName(left)
	var serverMatches []ServerRef
	for _, server := range ix.Servers {
		if normalizeName(server.ServerName) == targetServer {
			serverMatches = append(serverMatches, server)
		}
	}
	if len(serverMatches) == 0 {
		return ChannelRef{}, fmt.Errorf("unknown server name: %s", left)
	}
	if len(serverMatches) > 1 {
		labels := make([]string, len(serverMatches))
		for i, server := range serverMatches {
			labels[i] = fmt.Sprintf("%d:%s", server.ServerIndex, server.ServerName)
		}
		return ChannelRef{}, fmt.Errorf("ambiguous server name: %s (%s)", left, strings.Join(labels, ", "))
	}
	server := serverMatches[0]
	if isDigits(right) {
		channelIdx, _ := strconv.Atoi(right)
		if channelIdx < 1 || channelIdx > len(server.Channels) {
			return ChannelRef{}, fmt.Errorf("unknown channel index: %d:%s", server.ServerIndex, right)
		}
		return server.Channels[channelIdx-1], nil
	}
	matches := channelsNamed(server, right)
	switch len(matches) {
	case 0:
		return ChannelRef{}, fmt.Errorf("unknown channel name: %s (server %s)", right, server.ServerName)
	case 1:
		return matches[0], nil
	default:
		labels := make([]string, len(matches))
		for i, ref := range matches {
			labels[i] = fmt.Sprintf("%d:%d", server.ServerIndex, ref.ChannelIndex)
		}
		return ChannelRef{}, fmt.Errorf("ambiguous channel name: %s (%s)", right, strings.Join(labels, ", "))
	}
}

// resolvePath handles guild_id/channel_id arguments. Unknown ids still
// resolve so monkeys can be sent to channels outside the directory.
func (ix Index) resolvePath(cleaned string) (ChannelRef, error) {
	var parts []string
	for _, part := range strings.Split(cleaned, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) < 2 || !isDigits(parts[0]) || !isDigits(parts[1]) {
		return ChannelRef{}, fmt.Errorf("expected channel as guild_id/channel_id")
	}
	guildID, channelID := parts[0], parts[1]
	if ref, ok := ix.ByID[channelID]; ok {
		return ChannelRef{
			GuildID:      guildID,
			ChannelID:    channelID,
			ChannelName:  ref.ChannelName,
			ServerName:   ref.ServerName,
			ServerIndex:  ref.ServerIndex,
			ChannelIndex: ref.ChannelIndex,
		}, nil
	}
	return ChannelRef{GuildID: guildID, ChannelID: channelID}, nil
}

func channelsNamed(server ServerRef, name string) []ChannelRef {
	target := normalizeName(name)
	var matches []ChannelRef
	for _, ref := range server.Channels {
		if normalizeName(ref.ChannelName) == target {
			matches = append(matches, ref)
		}
	}
	return matches
}

func coordinateLabels(refs []ChannelRef) string {
	labels := make([]string, len(refs))
	for i, ref := range refs {
		labels[i] = fmt.Sprintf("%d:%d", ref.ServerIndex, ref.ChannelIndex)
	}
	return strings.Join(labels, ", ")
}
